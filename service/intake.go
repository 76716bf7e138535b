package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adythan1/Tax-Returns/model"
	"github.com/adythan1/Tax-Returns/pkg/logger"
)

// Upload is one file part of an intake request
type Upload struct {
	FieldName   string
	FileName    string
	Size        int64
	ContentType string
	Open        func() (multipart.File, error)
}

// UploadsFromForm flattens the file parts of a parsed multipart form,
// ordered by field name and then by position within the field.
func UploadsFromForm(form *multipart.Form) []Upload {
	if form == nil {
		return nil
	}
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var uploads []Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			uploads = append(uploads, Upload{
				FieldName:   field,
				FileName:    fh.Filename,
				Size:        fh.Size,
				ContentType: fh.Header.Get("Content-Type"),
				Open:        fh.Open,
			})
		}
	}
	return uploads
}

// IntakeRequest is one client submission. Fields holds the scalar form
// values; status, timestamps and the file inventory are filled by the service.
type IntakeRequest struct {
	Fields  model.Metadata
	Uploads []Upload
}

// Skip reasons
const (
	SkipEmpty       = "empty"
	SkipUnsupported = "unsupported_type"
	SkipTooLarge    = "too_large"
)

// SkippedFile is an upload that was not stored
type SkippedFile struct {
	FieldName string `json:"fieldName"`
	FileName  string `json:"fileName"`
	Reason    string `json:"reason"`
}

type IntakeResult struct {
	Folder        string             `json:"folder"`
	Link          string             `json:"link"`
	FilesUploaded int                `json:"filesUploaded"`
	Files         []model.StoredFile `json:"files"`
	Skipped       []SkippedFile      `json:"skipped,omitempty"`
}

// IntakeService runs the submission pipeline: validate, create the
// container, store files, write metadata, notify. Steps are not rolled back
// when a later one fails.
type IntakeService struct {
	backend    Backend
	metadata   *MetadataStore
	allow      *AllowList
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewIntakeService(backend Backend, metadata *MetadataStore, allow *AllowList, dispatcher *Dispatcher) *IntakeService {
	return &IntakeService{
		backend:    backend,
		metadata:   metadata,
		allow:      allow,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Validate checks the required fields without touching storage
func (s *IntakeService) Validate(req *IntakeRequest) error {
	var missing []string
	if strings.TrimSpace(req.Fields.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(req.Fields.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(req.Fields.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func (s *IntakeService) Submit(ctx context.Context, req *IntakeRequest) (*IntakeResult, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	folder := model.ContainerName(now, req.Fields.FirstName, req.Fields.LastName)
	ctx = logger.WithFolder(ctx, folder)

	if _, err := s.backend.CreateContainer(ctx, folder); err != nil {
		return nil, &StorageError{Op: "create_container", Err: err}
	}

	result := &IntakeResult{
		Folder: folder,
		Link:   s.backend.ContainerLink(folder),
		Files:  []model.StoredFile{},
	}
	used := make(map[string]bool)
	for _, up := range req.Uploads {
		stored, reason, err := s.storeUpload(ctx, folder, up, used)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			logger.Warn(ctx, "upload skipped", "field", up.FieldName, "file", up.FileName, "size", up.Size, "reason", reason)
			result.Skipped = append(result.Skipped, SkippedFile{FieldName: up.FieldName, FileName: up.FileName, Reason: reason})
			continue
		}
		result.Files = append(result.Files, *stored)
	}
	result.FilesUploaded = len(result.Files)

	md := req.Fields
	md.SubmittedAt = now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	md.Status = model.StatusReceived
	md.FilesCount = len(result.Files)
	md.Files = result.Files
	if err := s.metadata.Write(ctx, folder, &md); err != nil {
		return nil, &StorageError{Op: "write_metadata", Err: err}
	}

	logger.Info(ctx, "submission stored", "files", result.FilesUploaded, "skipped", len(result.Skipped))

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, &Notification{
			Folder:      folder,
			Link:        result.Link,
			Metadata:    &md,
			FileLinks:   s.fileLinks(ctx, folder, result.Files),
			SubmittedAt: now,
		})
	}
	return result, nil
}

// storeUpload streams one upload into the container. A non-empty reason
// means the file was skipped; err is only set for storage failures.
func (s *IntakeService) storeUpload(ctx context.Context, folder string, up Upload, used map[string]bool) (*model.StoredFile, string, error) {
	if up.Size <= 0 {
		return nil, SkipEmpty, nil
	}
	if up.Size > s.allow.MaxFileSize() {
		return nil, SkipTooLarge, nil
	}

	f, err := up.Open()
	if err != nil {
		return nil, "", &StorageError{Op: "read_upload", Err: err}
	}
	defer f.Close()

	sniffed, err := SniffContentType(f)
	if err != nil {
		return nil, "", &StorageError{Op: "read_upload", Err: err}
	}
	if err := s.allow.Check(up.FileName, up.Size, up.ContentType, sniffed); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, SkipTooLarge, nil
		}
		return nil, SkipUnsupported, nil
	}

	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffed
	}

	name := s.storedName(up.FileName, used)
	info, err := s.backend.PutFile(ctx, folder, name, f, up.Size, contentType)
	if err != nil {
		return nil, "", &StorageError{Op: "put_file", Err: err}
	}

	return &model.StoredFile{
		FieldName:    up.FieldName,
		FileName:     name,
		OriginalName: up.FileName,
		Size:         info.Size,
		Type:         strings.ToLower(filepath.Ext(up.FileName)),
		MimeType:     contentType,
	}, "", nil
}

// storedName prefixes the client file name with the upload time, adding a
// counter if the same name was already used in this request.
func (s *IntakeService) storedName(original string, used map[string]bool) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if ValidateName(base) != nil {
		base = "file"
	}
	ts := s.now().UnixMilli()
	name := fmt.Sprintf("%d_%s", ts, base)
	for i := 1; used[name]; i++ {
		name = fmt.Sprintf("%d_%d_%s", ts, i, base)
	}
	used[name] = true
	return name
}

func (s *IntakeService) fileLinks(ctx context.Context, folder string, files []model.StoredFile) map[string]string {
	linker, ok := s.backend.(FileLinker)
	if !ok || len(files) == 0 {
		return nil
	}
	links := make(map[string]string, len(files))
	for _, f := range files {
		link, err := linker.FileLink(ctx, folder, f.FileName)
		if err != nil {
			logger.Warn(ctx, "failed to create file link", "file", f.FileName, "error", err)
			continue
		}
		links[f.FileName] = link
	}
	return links
}
