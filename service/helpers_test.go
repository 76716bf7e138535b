package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/adythan1/Tax-Returns/config"
)

var (
	pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func upload(field, name, contentType string, data []byte) Upload {
	return Upload{
		FieldName:   field,
		FileName:    name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (multipart.File, error) {
			return memFile{bytes.NewReader(data)}, nil
		},
	}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// failingBackend wraps a backend and fails PutFile for one name
type failingBackend struct {
	Backend
	failName string
}

var errInjected = errors.New("injected failure")

func (b *failingBackend) PutFile(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	if name == b.failName {
		return nil, errInjected
	}
	return b.Backend.PutFile(ctx, container, name, r, size, contentType)
}

func testUploadConfig() *config.UploadConfig {
	return &config.UploadConfig{
		MaxFileSize:       1024,
		AllowedExtensions: []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"},
		AllowedMimeTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"image/jpeg",
			"image/png",
		},
	}
}

type pipeline struct {
	backend  Backend
	metadata *MetadataStore
	notifier *fakeNotifier
	dispatch *Dispatcher
	intake   *IntakeService
	admin    *AdminService
}

func newPipeline(t *testing.T, backend Backend) *pipeline {
	t.Helper()
	if backend == nil {
		backend = NewMemoryBackend()
	}
	p := &pipeline{backend: backend, notifier: &fakeNotifier{}}
	p.metadata = NewMetadataStore(backend)
	p.dispatch = NewDispatcher(p.notifier, time.Second)
	p.intake = NewIntakeService(backend, p.metadata, NewAllowList(testUploadConfig()), p.dispatch)
	p.admin = NewAdminService(backend, p.metadata, 10)
	return p
}

// at pins the pipeline clock
func (p *pipeline) at(ts time.Time) {
	p.intake.now = func() time.Time { return ts }
	p.admin.now = func() time.Time { return ts }
}
