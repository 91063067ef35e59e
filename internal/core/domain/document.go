package domain

import (
	"io"
	"time"
)

// Version is one uploaded file of a logical document. Versions are immutable
// except for IsCurrent.
type Version struct {
	ID            string    `json:"version_id"`
	DocumentID    string    `json:"document_id,omitempty"`
	VersionNumber int       `json:"version_number"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	ContentType   string    `json:"file_type"`
	UploadedBy    string    `json:"uploaded_by,omitempty"`
	UploaderName  string    `json:"uploader_name,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
	IsCurrent     bool      `json:"is_current"`
}

type Document struct {
	ID             string    `json:"document_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatorName    string    `json:"creator_name,omitempty"`
	DepartmentName string    `json:"department_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	CurrentVersion *Version  `json:"current_version,omitempty"`
	Tags           []string  `json:"tags"`
}

// FileUpload is a file staged for upload. Body is consumed once.
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentFile is the downloaded content of a version.
type DocumentFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// CreateDocumentRequest is the payload of POST /documents.
type CreateDocumentRequest struct {
	Title       string
	Description string
	Tags        []string
	File        FileUpload
}

// UpdateDocumentRequest is the payload of PUT /documents/{id}. ExistingTags
// replaces the tags already on the document; NewTags is an additive delta.
type UpdateDocumentRequest struct {
	Title        string
	Description  string
	ExistingTags []string
	NewTags      []string
	UploadedBy   string
	File         *FileUpload
}

// CurrentVersionOf returns the single current version in versions, or nil
// when none or more than one is flagged.
func CurrentVersionOf(versions []Version) *Version {
	var current *Version
	for i := range versions {
		if !versions[i].IsCurrent {
			continue
		}
		if current != nil {
			return nil
		}
		current = &versions[i]
	}
	return current
}

// CountCurrent reports how many versions carry the current flag.
func CountCurrent(versions []Version) int {
	n := 0
	for _, v := range versions {
		if v.IsCurrent {
			n++
		}
	}
	return n
}

// LatestVersion returns the version with the highest number.
func LatestVersion(versions []Version) *Version {
	var latest *Version
	for i := range versions {
		if latest == nil || versions[i].VersionNumber > latest.VersionNumber {
			latest = &versions[i]
		}
	}
	return latest
}
