package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adythan1/Tax-Returns/model"
	"github.com/adythan1/Tax-Returns/pkg/logger"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DateRange buckets submissions by age
type DateRange string

const (
	RangeAll    DateRange = "all"
	RangeToday  DateRange = "today"
	Range7Days  DateRange = "7days"
	Range30Days DateRange = "30days"
)

// ParseDateRange maps a query value to a range; unknown values mean all
func ParseDateRange(v string) DateRange {
	switch DateRange(strings.ToLower(strings.TrimSpace(v))) {
	case RangeToday:
		return RangeToday
	case Range7Days, "week", "7":
		return Range7Days
	case Range30Days, "month", "30":
		return Range30Days
	default:
		return RangeAll
	}
}

// Filter selects submissions for the dashboard. Page is 1-indexed.
type Filter struct {
	Search string
	Status model.Status
	Range  DateRange
	Page   int
}

type Page struct {
	Submissions []model.Submission `json:"submissions"`
	Total       int                `json:"total"`
	Page        int                `json:"page"`
	PageSize    int                `json:"pageSize"`
	TotalPages  int                `json:"totalPages"`
}

type Stats struct {
	Total    int                  `json:"total"`
	Today    int                  `json:"today"`
	ByStatus map[model.Status]int `json:"byStatus"`
}

// Download describes a file being served to an admin
type Download struct {
	Name        string // name for Content-Disposition
	Size        int64
	ContentType string
}

// AdminService answers dashboard queries by scanning containers and
// reading their metadata. Filtering and paging happen in memory.
type AdminService struct {
	backend  Backend
	metadata *MetadataStore
	pageSize int
	now      func() time.Time
}

func NewAdminService(backend Backend, metadata *MetadataStore, pageSize int) *AdminService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &AdminService{
		backend:  backend,
		metadata: metadata,
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *AdminService) List(ctx context.Context, f Filter) (*Page, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	matched := make([]model.Submission, 0, len(all))
	for i := range all {
		if f.matches(&all[i], now) {
			matched = append(matched, all[i])
		}
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	total := len(matched)
	totalPages := (total + s.pageSize - 1) / s.pageSize

	start := (page - 1) * s.pageSize
	end := start + s.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Page{
		Submissions: matched[start:end],
		Total:       total,
		Page:        page,
		PageSize:    s.pageSize,
		TotalPages:  totalPages,
	}, nil
}

func (f Filter) matches(sub *model.Submission, now time.Time) bool {
	if f.Status != "" && sub.Status != f.Status {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := []string{
			sub.FirstName + " " + sub.LastName,
			sub.Email,
			sub.Phone,
		}
		found := false
		for _, h := range haystack {
			if strings.Contains(strings.ToLower(h), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	var since time.Time
	switch f.Range {
	case RangeToday:
		y, m, d := now.Date()
		since = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case Range7Days:
		since = now.Add(-7 * 24 * time.Hour)
	case Range30Days:
		since = now.Add(-30 * 24 * time.Hour)
	default:
		return true
	}
	t := sub.Time()
	return !t.IsZero() && !t.Before(since)
}

// Get returns one submission
func (s *AdminService) Get(ctx context.Context, folder string) (*model.Submission, error) {
	if err := ValidateName(folder); err != nil {
		return nil, err
	}
	return s.load(ctx, folder)
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Total: len(all), ByStatus: make(map[model.Status]int)}
	for _, st := range model.Statuses {
		stats.ByStatus[st] = 0
	}
	now := s.now()
	today := Filter{Range: RangeToday}
	for i := range all {
		stats.ByStatus[all[i].Status]++
		if today.matches(&all[i], now) {
			stats.Today++
		}
	}
	return stats, nil
}

// loadAll reads every container, newest first
func (s *AdminService) loadAll(ctx context.Context) ([]model.Submission, error) {
	names, err := s.backend.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	subs := make([]model.Submission, 0, len(names))
	for _, name := range names {
		sub, err := s.load(ctx, name)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}

	sort.SliceStable(subs, func(i, j int) bool {
		ti, tj := subs[i].Time(), subs[j].Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return subs[i].Folder > subs[j].Folder
	})
	return subs, nil
}

// load builds the admin view of one container. Missing or unreadable
// metadata falls back to the folder name and a raw file listing.
func (s *AdminService) load(ctx context.Context, folder string) (*model.Submission, error) {
	sub := &model.Submission{ID: folder, Folder: folder}
	millis, firstName, lastName, ok := model.ParseContainerName(folder)
	if ok {
		sub.Timestamp = strconv.FormatInt(millis, 10)
	}

	md, err := s.metadata.Read(ctx, folder)
	switch {
	case err == nil:
		sub.Metadata = *md
	case errors.Is(err, ErrNotFound):
	default:
		logger.Warn(ctx, "unreadable metadata, listing files from storage", "folder", folder, "error", err)
	}

	if sub.FirstName == "" {
		sub.FirstName = firstName
	}
	if sub.LastName == "" {
		sub.LastName = lastName
	}
	if sub.Status == "" {
		sub.Status = model.StatusReceived
	}

	if len(sub.Files) == 0 {
		files, err := s.storageFiles(ctx, folder)
		if err != nil {
			return nil, err
		}
		sub.Files = files
	}
	sub.FilesCount = len(sub.Files)
	return sub, nil
}

func (s *AdminService) storageFiles(ctx context.Context, folder string) ([]model.StoredFile, error) {
	infos, err := s.backend.ListFiles(ctx, folder)
	if err != nil {
		return nil, err
	}
	files := make([]model.StoredFile, 0, len(infos))
	for _, info := range infos {
		if info.Name == model.MetadataFileName {
			continue
		}
		files = append(files, model.StoredFile{
			FieldName:    model.UnknownFieldName,
			FileName:     info.Name,
			OriginalName: info.Name,
			Size:         info.Size,
			Type:         strings.ToLower(filepath.Ext(info.Name)),
			MimeType:     info.ContentType,
		})
	}
	return files, nil
}

// OpenFile opens one stored document. The caller closes the reader.
func (s *AdminService) OpenFile(ctx context.Context, folder, file string) (io.ReadCloser, *Download, error) {
	if err := ValidateName(folder); err != nil {
		return nil, nil, err
	}
	if err := ValidateName(file); err != nil {
		return nil, nil, err
	}
	if file == model.MetadataFileName {
		return nil, nil, ErrAccessDenied
	}

	rc, info, err := s.backend.GetFile(ctx, folder, file)
	if err != nil {
		return nil, nil, err
	}

	name := file
	if md, err := s.metadata.Read(ctx, folder); err == nil {
		for _, f := range md.Files {
			if f.FileName == file && f.OriginalName != "" {
				name = f.OriginalName
				break
			}
		}
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeFor(file)
	}
	return rc, &Download{Name: name, Size: info.Size, ContentType: contentType}, nil
}

// Archive is a prepared zip download of one container
type Archive struct {
	Folder  string
	backend Backend
	files   []FileInfo
}

// Name is the download file name
func (a *Archive) Name() string { return a.Folder + ".zip" }

// Len is the number of entries the archive will hold
func (a *Archive) Len() int { return len(a.files) }

// PrepareArchive resolves the container's files so that lookup errors can
// be reported before any bytes are written.
func (s *AdminService) PrepareArchive(ctx context.Context, folder string) (*Archive, error) {
	if err := ValidateName(folder); err != nil {
		return nil, err
	}
	infos, err := s.backend.ListFiles(ctx, folder)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		if info.Name != model.MetadataFileName {
			files = append(files, info)
		}
	}
	return &Archive{Folder: folder, backend: s.backend, files: files}, nil
}

// Write streams the zip to w one file at a time
func (a *Archive) Write(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, info := range a.files {
		if err := a.addFile(ctx, zw, info); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (a *Archive) addFile(ctx context.Context, zw *zip.Writer, info FileInfo) error {
	rc, _, err := a.backend.GetFile(ctx, a.Folder, info.Name)
	if err != nil {
		return fmt.Errorf("open %s: %w", info.Name, err)
	}
	defer rc.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     info.Name,
		Method:   zip.Deflate,
		Modified: info.ModTime,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("archive %s: %w", info.Name, err)
	}
	return nil
}

// UpdateStatus overwrites the status in the container's metadata. Only the
// value is checked: it must be one of the five known statuses. Transitions
// are not checked, so any known status may follow any other.
func (s *AdminService) UpdateStatus(ctx context.Context, folder string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := ValidateName(folder); err != nil {
		return err
	}

	md, err := s.metadata.Read(ctx, folder)
	if err != nil {
		// no usable metadata: start from the fallback view
		sub, loadErr := s.load(ctx, folder)
		if loadErr != nil {
			return loadErr
		}
		md = &sub.Metadata
		md.Files = []model.StoredFile{}
		md.FilesCount = 0
		if md.SubmittedAt == "" && !sub.Time().IsZero() {
			md.SubmittedAt = sub.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
	}

	md.Status = status
	if err := s.metadata.Write(ctx, folder, md); err != nil {
		return &StorageError{Op: "write_metadata", Err: err}
	}
	logger.Info(logger.WithFolder(ctx, folder), "status updated", "status", status)
	return nil
}

// WriteArchive prepares and streams the archive for folder in one step
func (s *AdminService) WriteArchive(ctx context.Context, folder string, w io.Writer) error {
	a, err := s.PrepareArchive(ctx, folder)
	if err != nil {
		return err
	}
	return a.Write(ctx, w)
}
