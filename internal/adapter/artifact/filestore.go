package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes artifacts under a local directory. It is the default when
// no bucket is configured and keeps single-host deployments self-contained.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates a file-backed artifact store rooted at dir. baseURL,
// when set, prefixes returned URLs; otherwise keys resolve to local paths.
func NewFileStore(dir, baseURL string) *FileStore {
	return &FileStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

var _ Store = (*FileStore)(nil)

func (f *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(f.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", key, err)
	}

	if f.baseURL != "" {
		return f.baseURL + "/" + key, nil
	}
	return "file://" + path, nil
}
