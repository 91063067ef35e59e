package docex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

const classifyPath = "/classify/document"

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

// Client calls the document classification service. It implements
// ports.DocumentClassifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		executor:   opts.ResilienceExecutor,
	}
}

// Classify uploads the file as multipart field "file" and decodes the
// verdict. The body is buffered so a retried attempt can resend it.
func (c *Client) Classify(ctx context.Context, fileName, contentType string, body io.Reader) (domain.ClassificationResult, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("read classification payload: %w", err)
	}
	payload, formType, err := encodeFile(fileName, contentType, content)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("encode classification payload: %w", err)
	}

	result, err := resilience.Call(ctx, c.executor, "docex_classify", func(ctx context.Context) (domain.ClassificationResult, error) {
		return c.post(ctx, payload, formType)
	}, classifyDocexError)
	if err != nil {
		return domain.ClassificationResult{}, toDomainError(err)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, payload []byte, formType string) (domain.ClassificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+classifyPath, bytes.NewReader(payload))
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("create classify request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")
	requestID := domain.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("docex classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.ClassificationResult{}, &domain.ClassifierResponseError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var result domain.ClassificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassifierResponse, "decode classify response", err)
	}
	return result, nil
}

func encodeFile(fileName, contentType string, content []byte) ([]byte, string, error) {
	if fileName == "" {
		fileName = "document"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, strings.ReplaceAll(fileName, `"`, `\"`)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
