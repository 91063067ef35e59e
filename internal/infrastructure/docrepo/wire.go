package docrepo

import (
	"strings"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

// The service emits naive ISO timestamps as well as RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type wireVersion struct {
	ID            string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	FileType      string `json:"file_type"`
	UploadedBy    string `json:"uploaded_by"`
	UploaderName  string `json:"uploader_name"`
	UploadedAt    string `json:"uploaded_at"`
	IsCurrent     bool   `json:"is_current"`
}

func (w wireVersion) toDomain() domain.Version {
	return domain.Version{
		ID:            w.ID,
		VersionNumber: w.VersionNumber,
		FileName:      w.FileName,
		FileSize:      w.FileSize,
		ContentType:   w.FileType,
		UploadedBy:    w.UploadedBy,
		UploaderName:  w.UploaderName,
		UploadedAt:    parseTimestamp(w.UploadedAt),
		IsCurrent:     w.IsCurrent,
	}
}

type wireDocument struct {
	ID             string       `json:"document_id"`
	Title          string       `json:"title"`
	Description    *string      `json:"description"`
	CreatedBy      string       `json:"created_by"`
	CreatorName    string       `json:"creator_name"`
	DepartmentName string       `json:"department_name"`
	CreatedAt      string       `json:"created_at"`
	CurrentVersion *wireVersion `json:"current_version"`
	Tags           []string     `json:"tags"`
}

func (w wireDocument) toDomain() domain.Document {
	doc := domain.Document{
		ID:             w.ID,
		Title:          w.Title,
		CreatedBy:      w.CreatedBy,
		CreatorName:    w.CreatorName,
		DepartmentName: w.DepartmentName,
		CreatedAt:      parseTimestamp(w.CreatedAt),
		Tags:           w.Tags,
	}
	if w.Description != nil {
		doc.Description = *w.Description
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if w.CurrentVersion != nil {
		v := w.CurrentVersion.toDomain()
		v.DocumentID = w.ID
		doc.CurrentVersion = &v
	}
	return doc
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
