// Package transport moves file bytes to the remote store over HTTP
// multipart uploads and exposes the remote delete and metadata update
// endpoints.
package transport

import "context"

// SendRequest describes a single file upload.
type SendRequest struct {
	Path     string
	FileName string
	Metadata map[string]any
	Privacy  string
	Tags     []string
	Category string
	// Progress is invoked as file bytes are written to the wire. It may be
	// nil. No callback fires after Send returns.
	Progress func(sent, total int64)
}

// Receipt is the remote store's acknowledgement of a completed upload.
type Receipt struct {
	ID       string         `json:"id"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata"`
}

// Transport abstracts the remote file store.
type Transport interface {
	Send(ctx context.Context, req SendRequest) (Receipt, error)
	Delete(ctx context.Context, remoteID string) error
	UpdateMetadata(ctx context.Context, remoteID string, metadata map[string]any) error
}

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource wrapping a fixed credential.
type StaticToken string

// Token returns the wrapped credential.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}
