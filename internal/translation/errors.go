package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/livetranslate/internal/llm"
)

// Kind classifies a translation failure for user-facing messages.
type Kind string

const (
	KindCredential        Kind = "credential"
	KindRateLimit         Kind = "rate_limit"
	KindContentBlocked    Kind = "content_blocked"
	KindMalformedResponse Kind = "malformed_response"
	KindTimeout           Kind = "timeout"
	KindUnknown           Kind = "unknown"
)

var (
	ErrNotConfigured     = errors.New("translator not configured")
	ErrMalformedResponse = errors.New("unexpected response shape")
)

// Error is a classified translation failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translation %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to the user.
func (e *Error) Message() string {
	name := providerLabel(e.Provider)
	switch e.Kind {
	case KindCredential:
		return fmt.Sprintf("The %s API key appears to be invalid. Check the model settings.", name)
	case KindRateLimit:
		return fmt.Sprintf("The %s API usage limit was exceeded. Wait a moment and try again.", name)
	case KindContentBlocked:
		return "The translation request was blocked by the content policy. Check the input."
	case KindMalformedResponse:
		return "Received an unexpected response format from the translation API."
	case KindTimeout:
		return "The translation request timed out."
	}
	detail := "unknown error"
	if e.Err != nil && e.Err.Error() != "" {
		detail = e.Err.Error()
	}
	return "Translation API error: " + detail
}

// Classify maps provider errors onto the translation error taxonomy. It
// returns nil for a nil error.
func Classify(err error, provider string) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Kind: classifyKind(err), Provider: provider, Err: err}
}

func classifyKind(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, llm.ErrMissingCredential), errors.Is(err, ErrNotConfigured):
		return KindCredential
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	}

	switch statusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindCredential
	case http.StatusTooManyRequests:
		return KindRateLimit
	}

	if kind, ok := kindFromMessage(err.Error()); ok {
		return kind
	}
	return KindUnknown
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func kindFromMessage(msg string) (Kind, bool) {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "incorrect api key"),
		strings.Contains(msg, "invalid x-api-key"):
		return KindCredential, true
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"):
		return KindRateLimit, true
	case strings.Contains(msg, "candidate was blocked"),
		strings.Contains(msg, "content policy"),
		strings.Contains(msg, "content_filter"):
		return KindContentBlocked, true
	}
	return "", false
}

func providerLabel(p string) string {
	switch p {
	case "gemini":
		return "Gemini"
	case "openai":
		return "OpenAI"
	case "anthropic":
		return "Anthropic"
	case "ollama":
		return "Ollama"
	case "":
		return "translation"
	}
	return p
}
