// Package artifact persists rendered report files and returns the URL a
// client can fetch them from.
package artifact

import "context"

// Store uploads one artifact and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
