// Package blob abstracts durable storage for uploaded file bytes.
package blob

import "context"

// Store accepts raw bytes plus a declared media type and returns a durable
// URL the bytes can later be retrieved from.
type Store interface {
	Put(ctx context.Context, name string, mediaType string, data []byte) (url string, err error)
	Get(ctx context.Context, url string) ([]byte, error)
}
