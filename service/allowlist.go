package service

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/gabriel-vasile/mimetype"
)

// AllowList decides which uploads are accepted: extension and MIME type
// must both be listed and the size must not exceed the cap.
type AllowList struct {
	maxSize    int64
	extensions map[string]bool
	mimeTypes  map[string]bool
}

func NewAllowList(cfg *config.UploadConfig) *AllowList {
	a := &AllowList{
		maxSize:    cfg.MaxFileSize,
		extensions: make(map[string]bool),
		mimeTypes:  make(map[string]bool),
	}
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		a.extensions[ext] = true
	}
	for _, mt := range cfg.AllowedMimeTypes {
		a.mimeTypes[baseMediaType(mt)] = true
	}
	return a
}

// MaxFileSize is the per-file cap in bytes
func (a *AllowList) MaxFileSize() int64 { return a.maxSize }

// Check validates one upload. declared is the client supplied Content-Type,
// sniffed the type detected from the leading bytes; either may be empty.
func (a *AllowList) Check(name string, size int64, declared, sniffed string) error {
	if size > a.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, a.maxSize)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !a.extensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedFileType, ext)
	}
	if a.mimeTypes[baseMediaType(declared)] || a.mimeTypes[baseMediaType(sniffed)] {
		return nil
	}
	return fmt.Errorf("%w: content type %q", ErrUnsupportedFileType, declared)
}

// SniffContentType detects the MIME type of r from its first bytes and
// rewinds it.
func SniffContentType(r io.ReadSeeker) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return baseMediaType(m.String()), nil
}

func baseMediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}
