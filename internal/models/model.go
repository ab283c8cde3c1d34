package models

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderKind names the backend family a model descriptor talks to.
type ProviderKind string

const (
	ProviderGemini    ProviderKind = "gemini"
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOllama    ProviderKind = "ollama"
)

// ModelDescriptor is one user-configured translation model.
type ModelDescriptor struct {
	ID           string       `json:"id" yaml:"id" db:"id"`
	Name         string       `json:"name" yaml:"name" db:"name"`
	Provider     ProviderKind `json:"provider" yaml:"provider" db:"provider"`
	ModelAPIName string       `json:"model_api_name" yaml:"model_api_name" db:"model_api_name"`
	Credential   string       `json:"credential,omitempty" yaml:"credential" db:"credential"`
	Endpoint     string       `json:"endpoint,omitempty" yaml:"endpoint" db:"endpoint"`
}

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}

func (d ModelDescriptor) Validate() error {
	var errs []error
	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !d.Provider.Valid() {
		errs = append(errs, fmt.Errorf("unknown provider %q", d.Provider))
	}
	if strings.TrimSpace(d.ModelAPIName) == "" {
		errs = append(errs, errors.New("model_api_name is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("model %q: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// Redact returns a copy safe to hand to clients.
func (d ModelDescriptor) Redact() ModelDescriptor {
	if d.Credential != "" {
		d.Credential = "********"
	}
	return d
}
