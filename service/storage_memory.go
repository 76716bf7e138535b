package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryBackend is an in-memory backend for tests and demo mode.
// Contents are lost on restart.
type MemoryBackend struct {
	containers map[string]map[string]*memoryObject
	mu         sync.RWMutex
}

type memoryObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		containers: make(map[string]map[string]*memoryObject),
	}
}

func (b *MemoryBackend) Kind() string { return "memory" }

func (b *MemoryBackend) CreateContainer(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.containers[name]; !ok {
		b.containers[name] = make(map[string]*memoryObject)
	}
	return name, nil
}

func (b *MemoryBackend) PutFile(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = contentTypeFor(name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	objects, ok := b.containers[container]
	if !ok {
		return nil, ErrNotFound
	}
	obj := &memoryObject{data: data, contentType: contentType, modTime: time.Now()}
	objects[name] = obj
	return &FileInfo{Name: name, Size: int64(len(data)), ContentType: contentType, ModTime: obj.modTime}, nil
}

func (b *MemoryBackend) ListFiles(ctx context.Context, container string) ([]FileInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	objects, ok := b.containers[container]
	if !ok {
		return nil, ErrNotFound
	}
	files := make([]FileInfo, 0, len(objects))
	for name, obj := range objects {
		files = append(files, FileInfo{
			Name:        name,
			Size:        int64(len(obj.data)),
			ContentType: obj.contentType,
			ModTime:     obj.modTime,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (b *MemoryBackend) ListContainers(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.containers))
	for name := range b.containers {
		names = append(names, name)
	}
	return names, nil
}

func (b *MemoryBackend) GetFile(ctx context.Context, container, name string) (io.ReadCloser, *FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.containers[container][name]
	if !ok {
		return nil, nil, ErrNotFound
	}
	info := &FileInfo{Name: name, Size: int64(len(obj.data)), ContentType: obj.contentType, ModTime: obj.modTime}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Remove deletes a single object; tests use it to simulate lost metadata
func (b *MemoryBackend) Remove(container, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.containers[container], name)
}

func (b *MemoryBackend) ContainerLink(container string) string {
	return "memory://" + container
}

// Count returns the number of containers held
func (b *MemoryBackend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.containers)
}
