package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/adythan1/Tax-Returns/config"
)

// FileInfo describes one stored object inside a container
type FileInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	ModTime     time.Time `json:"modTime"`
}

// Backend stores submission files grouped by container. Names passed to a
// backend are single path elements; ValidateName enforces that.
type Backend interface {
	// Kind names the implementation, e.g. "local"
	Kind() string
	// CreateContainer creates the container if absent and returns its id
	CreateContainer(ctx context.Context, name string) (string, error)
	PutFile(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*FileInfo, error)
	ListFiles(ctx context.Context, container string) ([]FileInfo, error)
	ListContainers(ctx context.Context) ([]string, error)
	GetFile(ctx context.Context, container, name string) (io.ReadCloser, *FileInfo, error)
	// ContainerLink points staff to the container: a path or a URL
	ContainerLink(container string) string
}

// FileLinker is implemented by backends that can hand out direct,
// time-limited links to single files.
type FileLinker interface {
	FileLink(ctx context.Context, container, name string) (string, error)
}

// NewBackend builds the backend selected by cfg.Backend
func NewBackend(ctx context.Context, cfg *config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewLocalBackend(cfg.Local.Root)
	case config.BackendMinio:
		svc, err := NewMinioService(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := svc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ValidateName rejects names that are not a single, plain path element
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrAccessDenied
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return ErrAccessDenied
	}
	return nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
