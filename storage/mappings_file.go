package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"propsync/models"
)

// FileMappingStore serves field mappings from a YAML file, for running
// without Postgres. The file is re-read on every call.
type FileMappingStore struct {
	path string
}

func NewFileMappingStore(path string) *FileMappingStore {
	return &FileMappingStore{path: path}
}

func (s *FileMappingStore) ListFieldMappings(ctx context.Context) ([]models.FieldMapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read field mappings: %w", err)
	}
	return ParseFieldMappings(data)
}

// ParseFieldMappings decodes a YAML mapping list and returns it in display order.
func ParseFieldMappings(data []byte) ([]models.FieldMapping, error) {
	var mappings []models.FieldMapping
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("parse field mappings: %w", err)
	}
	for i, m := range mappings {
		if m.FieldName == "" {
			return nil, fmt.Errorf("field mapping %d has no field_name", i)
		}
		if mappings[i].ID == 0 {
			mappings[i].ID = int64(i + 1)
		}
	}
	models.SortMappings(mappings)
	return mappings, nil
}
