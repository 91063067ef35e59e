package docrepo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

const defaultMaxDownloadBytes = 100 << 20

type Options struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	MaxDownloadBytes   int64
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

// Client talks to the document repository service. It implements
// ports.DocumentStore.
type Client struct {
	baseURL          string
	token            string
	maxDownloadBytes int64
	httpClient       *http.Client
	executor         *resilience.Executor
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxDownload := opts.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = defaultMaxDownloadBytes
	}
	return &Client{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		token:            strings.TrimSpace(opts.Token),
		maxDownloadBytes: maxDownload,
		httpClient:       httpClient,
		executor:         opts.ResilienceExecutor,
	}
}

func (c *Client) ListDocuments(ctx context.Context, query domain.CatalogQuery) ([]domain.Document, error) {
	var payload []wireDocument
	err := c.read(ctx, "list_documents", func(ctx context.Context) error {
		payload = nil
		return c.getJSON(ctx, "/documents", query.Values(), &payload, "list_documents")
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(payload))
	for _, doc := range payload {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (c *Client) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	var payload wireDocument
	err := c.read(ctx, "get_document", func(ctx context.Context) error {
		return c.getJSON(ctx, documentPath(documentID), nil, &payload, "get_document")
	})
	if err != nil {
		return nil, err
	}
	doc := payload.toDomain()
	return &doc, nil
}

func (c *Client) ListVersions(ctx context.Context, documentID string) ([]domain.Version, error) {
	var payload []wireVersion
	err := c.read(ctx, "list_versions", func(ctx context.Context) error {
		payload = nil
		return c.getJSON(ctx, documentPath(documentID)+"/versions", nil, &payload, "list_versions")
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Version, 0, len(payload))
	for _, v := range payload {
		version := v.toDomain()
		version.DocumentID = documentID
		out = append(out, version)
	}
	return out, nil
}

func (c *Client) CreateDocument(ctx context.Context, req domain.CreateDocumentRequest) (*domain.Document, error) {
	fields := []formField{
		{name: "title", value: req.Title},
		{name: "description", value: req.Description},
	}
	for _, tag := range req.Tags {
		fields = append(fields, formField{name: "tags", value: tag})
	}
	file := req.File
	return c.submitMultipart(ctx, http.MethodPost, "/documents", fields, &file, "create_document")
}

// UpdateDocument sends ExistingTags as the replacement set and NewTags as
// additions, with an optional file that becomes a new version.
func (c *Client) UpdateDocument(ctx context.Context, documentID string, req domain.UpdateDocumentRequest) (*domain.Document, error) {
	fields := []formField{
		{name: "title", value: req.Title},
		{name: "description", value: req.Description},
	}
	for _, tag := range req.ExistingTags {
		fields = append(fields, formField{name: "existing_tags", value: tag})
	}
	for _, tag := range req.NewTags {
		fields = append(fields, formField{name: "tags", value: tag})
	}
	if req.UploadedBy != "" {
		fields = append(fields, formField{name: "uploaded_by", value: req.UploadedBy})
	}
	return c.submitMultipart(ctx, http.MethodPut, documentPath(documentID), fields, req.File, "update_document")
}

// SetCurrentVersion is idempotent and carries no body, so it retries like a
// read.
func (c *Client) SetCurrentVersion(ctx context.Context, documentID, versionID string) error {
	path := documentPath(documentID) + "/versions/" + url.PathEscape(versionID) + "/set-current"
	return c.read(ctx, "set_current_version", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPut, path, nil, nil, "set_current_version")
	})
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.write(ctx, "delete_document", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodDelete, documentPath(documentID), nil, nil, "delete_document")
	})
}

// Download fetches the bytes of versionID, or of the current version when
// versionID is empty.
func (c *Client) Download(ctx context.Context, documentID, versionID string) (*domain.DocumentFile, error) {
	path := documentPath(documentID) + "/download"
	if versionID != "" {
		path = documentPath(documentID) + "/versions/" + url.PathEscape(versionID) + "/download"
	}

	var file *domain.DocumentFile
	err := c.read(ctx, "download", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			return fmt.Errorf("create download request: %w", err)
		}
		req.Header.Set("Accept", "*/*")
		resp, err := c.send(req, "download")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		content, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownloadBytes+1))
		if err != nil {
			return fmt.Errorf("read download body: %w", err)
		}
		if int64(len(content)) > c.maxDownloadBytes {
			return fmt.Errorf("download exceeds %d bytes", c.maxDownloadBytes)
		}
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		file = &domain.DocumentFile{
			FileName:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
			ContentType: contentType,
			Content:     content,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// AddTags posts labels to the tag endpoint and returns the tags the service
// reports afterwards, when it reports them.
func (c *Client) AddTags(ctx context.Context, documentID string, tags []string) ([]string, error) {
	var payload struct {
		Tags []string `json:"tags"`
	}
	err := c.write(ctx, "add_tags", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, documentPath(documentID)+"/tags", map[string]any{"tags": tags}, &payload, "add_tags")
	})
	if err != nil {
		return nil, err
	}
	return payload.Tags, nil
}

func (c *Client) submitMultipart(
	ctx context.Context,
	method, path string,
	fields []formField,
	file *domain.FileUpload,
	operation string,
) (*domain.Document, error) {
	var payload wireDocument
	err := c.write(ctx, operation, func(ctx context.Context) error {
		body, contentType := multipartBody(fields, file)
		defer body.Close()

		req, err := c.newRequest(ctx, method, path, nil, body)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", contentType)
		return c.doJSON(req, &payload, operation)
	})
	if err != nil {
		return nil, err
	}
	doc := payload.toDomain()
	return &doc, nil
}

func (c *Client) read(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, "docrepo_"+operation, fn, classifyReadError)
	return toDomainError(operation, err)
}

func (c *Client) write(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, "docrepo_"+operation, fn, classifyWriteError)
	return toDomainError(operation, err)
}

func documentPath(documentID string) string {
	return "/documents/" + url.PathEscape(documentID)
}
