package modelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/models"
)

var ErrNotFound = errors.New("model not found")

// DefaultModelID is the built-in Gemini descriptor that uses the
// environment-provided key.
const DefaultModelID = "gemini-default"

// Provider is a read-only source of configured model descriptors.
type Provider interface {
	List(ctx context.Context) ([]models.ModelDescriptor, error)
}

// Resolve picks the descriptor with the given id. An empty id selects the
// first configured descriptor.
func Resolve(ctx context.Context, p Provider, id string) (models.ModelDescriptor, error) {
	list, err := p.List(ctx)
	if err != nil {
		return models.ModelDescriptor{}, fmt.Errorf("list models: %w", err)
	}
	if len(list) == 0 {
		return models.ModelDescriptor{}, fmt.Errorf("no models configured: %w", ErrNotFound)
	}
	if id == "" {
		return list[0], nil
	}
	for _, d := range list {
		if d.ID == id {
			return d, nil
		}
	}
	return models.ModelDescriptor{}, fmt.Errorf("model %q: %w", id, ErrNotFound)
}

// StaticStore serves a fixed list.
type StaticStore struct {
	models []models.ModelDescriptor
}

func NewStaticStore(list ...models.ModelDescriptor) *StaticStore {
	return &StaticStore{models: append([]models.ModelDescriptor(nil), list...)}
}

func (s *StaticStore) List(_ context.Context) ([]models.ModelDescriptor, error) {
	return append([]models.ModelDescriptor(nil), s.models...), nil
}

// Default returns the descriptor list used when no models file or database
// is configured.
func Default(cfg config.LLMConfig) *StaticStore {
	return NewStaticStore(models.ModelDescriptor{
		ID:           DefaultModelID,
		Name:         "Gemini Flash",
		Provider:     models.ProviderGemini,
		ModelAPIName: "gemini-2.5-flash",
		Credential:   cfg.GeminiKey,
	})
}

// Chain returns descriptors from every provider in order, skipping ids that
// were already seen.
type Chain []Provider

func (c Chain) List(ctx context.Context) ([]models.ModelDescriptor, error) {
	seen := make(map[string]bool)
	var out []models.ModelDescriptor
	for _, p := range c {
		list, err := p.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range list {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out, nil
}
