package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioService stores each container as an object prefix in one bucket
type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

func (s *MinioService) Kind() string { return "minio" }

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func containerPrefix(container string) string {
	return container + "/"
}

func objectKey(container, name string) string {
	return containerPrefix(container) + name
}

// CreateContainer writes a zero-byte folder marker so that a submission
// without files is still listed.
func (s *MinioService) CreateContainer(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, s.bucket, containerPrefix(name), bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create folder marker: %w", err)
	}
	return name, nil
}

// PutFile streams r to the bucket. A size of -1 makes the client upload in
// parts without knowing the length up front.
func (s *MinioService) PutFile(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	if err := ValidateName(container); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = contentTypeFor(name)
	}
	info, err := s.client.PutObject(ctx, s.bucket, objectKey(container, name), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	modTime := info.LastModified
	if modTime.IsZero() {
		modTime = time.Now()
	}
	return &FileInfo{Name: name, Size: info.Size, ContentType: contentType, ModTime: modTime}, nil
}

func (s *MinioService) ListFiles(ctx context.Context, container string) ([]FileInfo, error) {
	if err := ValidateName(container); err != nil {
		return nil, err
	}
	prefix := containerPrefix(container)

	found := false
	files := []FileInfo{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		found = true
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		files = append(files, FileInfo{
			Name:        name,
			Size:        obj.Size,
			ContentType: contentTypeFor(name),
			ModTime:     obj.LastModified,
		})
	}
	if !found {
		return nil, ErrNotFound
	}
	return files, nil
}

func (s *MinioService) ListContainers(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if name, ok := strings.CutSuffix(obj.Key, "/"); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *MinioService) GetFile(ctx context.Context, container, name string) (io.ReadCloser, *FileInfo, error) {
	if err := ValidateName(container); err != nil {
		return nil, nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	key := objectKey(container, name)

	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, &FileInfo{Name: name, Size: st.Size, ContentType: st.ContentType, ModTime: st.LastModified}, nil
}

func isNoSuchKey(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject", "NotFound":
		return true
	}
	return false
}

// FileLink generates a presigned GET URL valid for ExpireDays
func (s *MinioService) FileLink(ctx context.Context, container, name string) (string, error) {
	return s.GetPresignedURL(ctx, objectKey(container, name))
}

// GetPresignedURL generates a presigned URL for the object with expiration
func (s *MinioService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

func (s *MinioService) ContainerLink(container string) string {
	return s.GetPublicURL(containerPrefix(container))
}

// GetPublicURL returns a public URL for the object (if bucket policy allows)
func (s *MinioService) GetPublicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}
