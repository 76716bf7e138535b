package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/adythan1/Tax-Returns/model"
)

// MetadataStore keeps one metadata.json artifact per container on top of a
// Backend. Writes overwrite; there is no query language.
type MetadataStore struct {
	backend Backend
}

func NewMetadataStore(backend Backend) *MetadataStore {
	return &MetadataStore{backend: backend}
}

func (s *MetadataStore) Write(ctx context.Context, container string, md *model.Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.backend.PutFile(ctx, container, model.MetadataFileName, bytes.NewReader(data), int64(len(data)), "application/json")
	return err
}

// Read returns ErrNotFound when the container has no metadata artifact
func (s *MetadataStore) Read(ctx context.Context, container string) (*model.Metadata, error) {
	rc, _, err := s.backend.GetFile(ctx, container, model.MetadataFileName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var md model.Metadata
	if err := json.NewDecoder(rc).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}
