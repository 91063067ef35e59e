package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
	"github.com/kirillkom/docrepo-assistant/internal/core/usecase"
	"github.com/kirillkom/docrepo-assistant/internal/observability/metrics"
)

const (
	maxUploadBytes       = 100 << 20
	multipartMemoryBytes = 32 << 20
)

// BreakerReporter exposes the circuit breaker states of outbound calls.
type BreakerReporter interface {
	BreakerStates() map[string]string
}

// Services are the inbound ports the gateway exposes. Queue may be nil, in
// which case asynchronous classification is refused. Breakers is optional.
type Services struct {
	Catalog  ports.DocumentCatalog
	Editor   ports.DocumentEditor
	Ledger   ports.VersionLedger
	Workflow ports.ClassificationRunner
	Queue    ports.ClassificationQueue
	Breakers BreakerReporter
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/documents", rt.searchDocuments)
	mux.HandleFunc("POST /v1/documents", rt.createDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("PATCH /v1/documents/{id}", rt.updateDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("GET /v1/documents/{id}/versions", rt.listVersions)
	mux.HandleFunc("POST /v1/documents/{id}/versions", rt.uploadVersion)
	mux.HandleFunc("PUT /v1/documents/{id}/versions/{version_id}/current", rt.setCurrentVersion)
	mux.HandleFunc("GET /v1/documents/{id}/download", rt.download)
	mux.HandleFunc("GET /v1/documents/{id}/classify", rt.classificationState)
	mux.HandleFunc("POST /v1/documents/{id}/classify", rt.classify)
	mux.HandleFunc("DELETE /v1/documents/{id}/classify", rt.abandonClassification)

	validator, err := loadOpenAPIRouter()
	if err != nil {
		panic(fmt.Sprintf("load embedded openapi document: %v", err))
	}

	var handler http.Handler = mux
	handler = openAPIValidationMiddleware(handler, validator)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueTimeout())
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = bearerTokenMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	breakers := map[string]string{}
	if rt.services.Breakers != nil {
		breakers = rt.services.Breakers.BreakerStates()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"breakers": breakers,
	})
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := rt.services.Catalog.Search(r.Context(), query.Get("search"), splitTags(query["tags"]))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if filter := strings.TrimSpace(query.Get("tag_filter")); filter != "" {
		page.UsedTags = usecase.FilterTags(page.UsedTags, filter)
	}
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) createDocument(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.RemoveAll()

	session := rt.services.Editor.BeginCreate()
	session.Title = formValue(form, "title")
	session.Description = formValue(form, "description")

	upload, closeFile, err := formFile(form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if upload != nil {
		defer closeFile()
		session.StageFile(*upload)
	}

	warnings := addTags(session, formTags(form.Value["tags"]))
	doc, err := rt.services.Editor.Submit(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(warnings) > 0 {
		slog.Info("duplicate_tags_ignored", "request_id", requestIDFromContext(r.Context()), "tags", warnings)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type documentPatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	RemoveTags  []string `json:"remove_tags"`
	AddTags     []string `json:"add_tags"`
}

// updateDocument replays the patch on an edit session started from the
// stored document, so the store receives both tag sets.
func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	var patch documentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	session, err := rt.services.Editor.BeginUpdate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if patch.Title != nil {
		session.Title = *patch.Title
	}
	if patch.Description != nil {
		session.Description = *patch.Description
	}
	for _, tag := range patch.RemoveTags {
		session.RemoveExistingTag(tag)
		session.RemoveNewTag(tag)
	}
	warnings := addTags(session, patch.AddTags)

	doc, err := rt.services.Editor.Submit(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"warnings": warnings,
	})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := rt.services.Ledger.ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) uploadVersion(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.RemoveAll()

	upload, closeFile, err := formFile(form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if upload == nil {
		writeError(w, r, domain.WrapError(domain.ErrValidation, "upload version", domain.NewFieldError("file", "Please select a file to upload")))
		return
	}
	defer closeFile()

	version, err := rt.services.Ledger.RecordUpload(r.Context(), r.PathValue("id"), *upload, formValue(form, "uploaded_by"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (rt *Router) setCurrentVersion(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if err := rt.services.Ledger.SetCurrent(r.Context(), documentID, r.PathValue("version_id")); err != nil {
		writeError(w, r, err)
		return
	}
	versions, err := rt.services.Ledger.ListVersions(r.Context(), documentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) download(w http.ResponseWriter, r *http.Request) {
	file, err := rt.services.Catalog.Download(r.Context(), r.PathValue("id"), r.URL.Query().Get("version_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (rt *Router) classificationState(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"state":       string(rt.services.Workflow.State(documentID)),
	})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if rt.services.Queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "asynchronous classification is not configured"})
			return
		}
		if err := rt.services.Queue.PublishClassificationRequested(r.Context(), documentID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"document_id": documentID,
			"state":       "queued",
		})
		return
	}

	outcome, err := rt.services.Workflow.Classify(r.Context(), documentID)
	if err != nil {
		if outcome == nil {
			writeError(w, r, err)
			return
		}
		slog.Warn("classification_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", documentID,
			"failed_stage", outcome.FailedStage,
			"error", err.Error(),
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
			"error":   domain.UserMessage(err),
			"outcome": outcome,
		})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) abandonClassification(w http.ResponseWriter, r *http.Request) {
	if !rt.services.Workflow.Abandon(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no classification in progress"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.WrapError(domain.ErrValidation, "parse upload", domain.NewFieldError("file", "The file is too large"))
		}
		return nil, domain.WrapError(domain.ErrValidation, "parse upload", err)
	}
	return r.MultipartForm, nil
}

// formFile returns the "file" part, or nil when the form carries none.
func formFile(form *multipart.Form) (*domain.FileUpload, func(), error) {
	headers := form.File["file"]
	if len(headers) == 0 {
		return nil, func() {}, nil
	}
	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, domain.WrapError(domain.ErrValidation, "open upload", err)
	}
	return &domain.FileUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// formTags takes repeated multipart values as whole labels.
func formTags(values []string) []string {
	var tags []string
	for _, value := range values {
		if tag := strings.TrimSpace(value); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// splitTags accepts both repeated query parameters and comma-separated values.
func splitTags(values []string) []string {
	var tags []string
	for _, value := range values {
		for _, tag := range strings.Split(value, domain.TagFilterSeparator) {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// addTags stages labels as new tags. Duplicates are reported, not fatal.
func addTags(session *domain.EditSession, labels []string) []string {
	warnings := []string{}
	for _, label := range labels {
		if err := session.AddNewTag(label); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s (%s)", domain.UserMessage(err), strings.TrimSpace(label)))
		}
	}
	return warnings
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
