package modelstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// FileStore reads descriptors from a YAML (or JSON) file. The file is read
// on every List so edits apply to the next session without a restart.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type modelsFile struct {
	Models []models.ModelDescriptor `yaml:"models"`
}

func (s *FileStore) List(_ context.Context) ([]models.ModelDescriptor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}
	return parseModels(data)
}

func parseModels(data []byte) ([]models.ModelDescriptor, error) {
	var f modelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode models file: %w", err)
	}
	for _, d := range f.Models {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Models, nil
}
