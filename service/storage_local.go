package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBackend keeps each container as a directory under root
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &LocalBackend{root: abs}, nil
}

func (b *LocalBackend) Kind() string { return "local" }

// Root returns the absolute upload directory
func (b *LocalBackend) Root() string { return b.root }

// resolve joins elems under root and refuses anything that escapes it
func (b *LocalBackend) resolve(elems ...string) (string, error) {
	for _, e := range elems {
		if err := ValidateName(e); err != nil {
			return "", err
		}
	}
	p := filepath.Join(append([]string{b.root}, elems...)...)
	rel, err := filepath.Rel(b.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}
	return p, nil
}

func (b *LocalBackend) CreateContainer(ctx context.Context, name string) (string, error) {
	dir, err := b.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return name, nil
}

// PutFile streams r into a temp file next to the target and renames it into
// place, so readers never observe a half-written file.
func (b *LocalBackend) PutFile(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	dir, err := b.resolve(container)
	if err != nil {
		return nil, err
	}
	target, err := b.resolve(container, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("rename file: %w", err)
	}

	st, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if contentType == "" {
		contentType = contentTypeFor(name)
	}
	return &FileInfo{Name: name, Size: written, ContentType: contentType, ModTime: st.ModTime()}, nil
}

func (b *LocalBackend) ListFiles(ctx context.Context, container string) ([]FileInfo, error) {
	dir, err := b.resolve(container)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		// dot files are in-flight temp uploads
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:        e.Name(),
			Size:        info.Size(),
			ContentType: contentTypeFor(e.Name()),
			ModTime:     info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (b *LocalBackend) ListContainers(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("read upload root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *LocalBackend) GetFile(ctx context.Context, container, name string) (io.ReadCloser, *FileInfo, error) {
	p, err := b.resolve(container, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, &FileInfo{Name: name, Size: st.Size(), ContentType: contentTypeFor(name), ModTime: st.ModTime()}, nil
}

func (b *LocalBackend) ContainerLink(container string) string {
	return filepath.Join(b.root, container)
}
