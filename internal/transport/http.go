package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"courier/internal/services"
)

// HTTPTransport implements Transport against an HTTP file store.
type HTTPTransport struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
}

// Option customizes the transport.
type Option func(*HTTPTransport)

// WithHTTPClient overrides the default HTTP client. Transfer deadlines come
// from the request context, so the default client carries no timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// NewHTTPTransport builds a transport that posts uploads to the endpoint.
func NewHTTPTransport(endpoint string, tokens TokenSource, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		tokens:     tokens,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type countingReader struct {
	reader   io.Reader
	total    int64
	sent     int64
	progress func(sent, total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent, c.total)
		}
	}
	return n, err
}

// Send streams the file as a multipart upload. The body is built in a pipe
// goroutine so the file is never buffered in memory, and the progress
// callback tracks file bytes as they are read onto the wire.
func (t *HTTPTransport) Send(ctx context.Context, req SendRequest) (Receipt, error) {
	var empty Receipt

	file, err := os.Open(req.Path)
	if err != nil {
		return empty, services.Wrap(services.ErrTransfer, "uploading", "open", "", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return empty, services.Wrap(services.ErrTransfer, "uploading", "stat", "", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.Path)
	}

	counting := &countingReader{
		reader:   file,
		total:    info.Size(),
		progress: req.Progress,
	}

	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, pipeReader)
	if err != nil {
		return empty, services.Wrap(services.ErrTransfer, "uploading", "build request", "", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if err := t.authorize(httpReq); err != nil {
		return empty, err
	}

	bodyDone := make(chan struct{})
	go func() {
		defer close(bodyDone)
		pipeWriter.CloseWithError(writeMultipartBody(writer, counting, fileName, req))
	}()
	resp, err := t.httpClient.Do(httpReq)
	// The server may answer before draining the body. Closing the read end
	// fails any remaining writes, and joining the goroutine guarantees the
	// progress callback never fires after Send returns.
	pipeReader.Close()
	<-bodyDone
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return empty, services.Wrap(services.ErrCancelled, "uploading", "send", "", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return empty, services.Wrap(services.ErrTimeout, "uploading", "send", "transfer deadline exceeded", err)
		}
		return empty, services.Wrap(services.ErrTransfer, "uploading", "send", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrTransfer, "uploading", "read response", "", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return empty, services.Wrap(services.ErrTransfer, "uploading", "send",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var receipt Receipt
	if len(body) > 0 {
		if err := json.Unmarshal(body, &receipt); err != nil {
			return empty, services.Wrap(services.ErrTransfer, "uploading", "decode receipt", "", err)
		}
	}
	return receipt, nil
}

func writeMultipartBody(writer *multipart.Writer, file io.Reader, fileName string, req SendRequest) error {
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(encoded)); err != nil {
		return fmt.Errorf("write metadata field: %w", err)
	}

	if err := writer.WriteField("privacy", req.Privacy); err != nil {
		return fmt.Errorf("write privacy field: %w", err)
	}
	tags, err := json.Marshal(req.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if err := writer.WriteField("tags", string(tags)); err != nil {
		return fmt.Errorf("write tags field: %w", err)
	}
	if err := writer.WriteField("category", req.Category); err != nil {
		return fmt.Errorf("write category field: %w", err)
	}

	return writer.Close()
}

// Delete removes a previously uploaded file from the remote store. A file
// already gone remotely counts as deleted.
func (t *HTTPTransport) Delete(ctx context.Context, remoteID string) error {
	if strings.TrimSpace(remoteID) == "" {
		return services.Wrap(services.ErrValidation, "remote", "delete", "remote id required", nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint+"/"+remoteID, nil)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "remote", "delete", "", err)
	}
	if err := t.authorize(httpReq); err != nil {
		return err
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "remote", "delete", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransfer, "remote", "delete",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

// UpdateMetadata replaces the remote metadata document for an upload.
func (t *HTTPTransport) UpdateMetadata(ctx context.Context, remoteID string, metadata map[string]any) error {
	if strings.TrimSpace(remoteID) == "" {
		return services.Wrap(services.ErrValidation, "remote", "update", "remote id required", nil)
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "remote", "update", "encode metadata", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, t.endpoint+"/"+remoteID+"/metadata", strings.NewReader(string(encoded)))
	if err != nil {
		return services.Wrap(services.ErrTransfer, "remote", "update", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := t.authorize(httpReq); err != nil {
		return err
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "remote", "update", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransfer, "remote", "update",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

func (t *HTTPTransport) authorize(req *http.Request) error {
	if t.tokens == nil {
		return nil
	}
	token, err := t.tokens.Token()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "uploading", "token", "", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
