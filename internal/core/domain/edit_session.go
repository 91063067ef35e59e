package domain

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Baseline is the document state captured when an update session starts.
type Baseline struct {
	Title       string
	Description string
	Tags        []string
}

// EditSession holds the working state of one create or update flow. It is
// never persisted; it is discarded after submission.
//
// Tag state is split in two: existing tags start as a copy of the baseline and
// can only shrink, new tags start empty and can only grow. A label is never
// present in both.
type EditSession struct {
	DocumentID  string
	Title       string
	Description string
	UploadedBy  string
	StagedFile  *FileUpload

	baseline     *Baseline
	existingTags []string
	newTags      []string
}

func NewCreateSession() *EditSession {
	return &EditSession{}
}

func NewUpdateSession(doc Document) *EditSession {
	tags := uniqueTags(doc.Tags)
	return &EditSession{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		baseline: &Baseline{
			Title:       doc.Title,
			Description: doc.Description,
			Tags:        slices.Clone(tags),
		},
		existingTags: slices.Clone(tags),
	}
}

func (s *EditSession) IsUpdate() bool { return s.baseline != nil }

func (s *EditSession) Baseline() (Baseline, bool) {
	if s.baseline == nil {
		return Baseline{}, false
	}
	out := *s.baseline
	out.Tags = slices.Clone(s.baseline.Tags)
	return out, true
}

func (s *EditSession) ExistingTags() []string { return slices.Clone(s.existingTags) }

func (s *EditSession) NewTags() []string { return slices.Clone(s.newTags) }

// AddNewTag trims label and appends it to the new tags. Empty input is a
// no-op. A label already present in either set leaves the session untouched
// and returns ErrDuplicateTag, which callers treat as a warning.
func (s *EditSession) AddNewTag(label string) error {
	tag := strings.TrimSpace(label)
	if tag == "" {
		return nil
	}
	if slices.Contains(s.existingTags, tag) || slices.Contains(s.newTags, tag) {
		return WrapError(ErrDuplicateTag, "add tag", fmt.Errorf("label %q", tag))
	}
	s.newTags = append(s.newTags, tag)
	return nil
}

func (s *EditSession) RemoveExistingTag(label string) {
	s.existingTags = slices.DeleteFunc(s.existingTags, func(t string) bool { return t == label })
}

func (s *EditSession) RemoveNewTag(label string) {
	s.newTags = slices.DeleteFunc(s.newTags, func(t string) bool { return t == label })
}

// ApplyAutomaticTag places label into the existing tags without duplicate
// feedback. On a create session it lands in the new tags, since a document
// without a baseline has no existing tags. It reports whether the session
// changed and needs to be re-submitted.
func (s *EditSession) ApplyAutomaticTag(label string) bool {
	tag := strings.TrimSpace(label)
	if tag == "" {
		return false
	}
	if !s.IsUpdate() {
		if slices.Contains(s.newTags, tag) {
			return false
		}
		s.newTags = append(s.newTags, tag)
		return true
	}
	if slices.Contains(s.existingTags, tag) {
		return false
	}
	s.RemoveNewTag(tag)
	s.existingTags = append(s.existingTags, tag)
	return true
}

// SubmissionTagSets returns both tag sets verbatim. For a create session
// existing is always empty.
func (s *EditSession) SubmissionTagSets() (existing, added []string) {
	added = s.NewTags()
	if added == nil {
		added = []string{}
	}
	if !s.IsUpdate() {
		return []string{}, added
	}
	existing = s.ExistingTags()
	if existing == nil {
		existing = []string{}
	}
	return existing, added
}

// StageFile attaches a file. On create the title is filled from the file
// name when still empty.
func (s *EditSession) StageFile(file FileUpload) {
	s.StagedFile = &file
	if !s.IsUpdate() && strings.TrimSpace(s.Title) == "" {
		s.Title = strings.TrimSuffix(file.FileName, filepath.Ext(file.FileName))
	}
}

// HasChanges reports whether submitting the session would change the
// document. A create session always has changes.
func (s *EditSession) HasChanges() bool {
	if s.baseline == nil {
		return true
	}
	if strings.TrimSpace(s.Title) != s.baseline.Title {
		return true
	}
	if s.Description != s.baseline.Description {
		return true
	}
	if s.StagedFile != nil {
		return true
	}
	working := append(slices.Clone(s.existingTags), s.newTags...)
	return len(SymmetricDifference(working, s.baseline.Tags)) > 0
}

// Validate checks required fields without contacting the store.
func (s *EditSession) Validate() error {
	if !s.IsUpdate() && s.StagedFile == nil {
		return WrapError(ErrValidation, "validate session", NewFieldError("file", "Please select a file to upload"))
	}
	if strings.TrimSpace(s.Title) == "" {
		return WrapError(ErrValidation, "validate session", NewFieldError("title", "Please enter a document title"))
	}
	return nil
}

// SymmetricDifference returns labels present in exactly one of a and b,
// sorted ascending.
func SymmetricDifference(a, b []string) []string {
	inA := make(map[string]struct{}, len(a))
	for _, t := range a {
		inA[t] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	var out []string
	for t := range inA {
		if _, ok := inB[t]; !ok {
			out = append(out, t)
		}
	}
	for t := range inB {
		if _, ok := inA[t]; !ok {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
