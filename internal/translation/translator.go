package translation

import (
	"context"

	"github.com/nikhilbhutani/livetranslate/internal/llm"
	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// Translator converts text between languages using the selected model.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string, model models.ModelDescriptor) (string, error)
}

// UsageRecorder receives accounting data for each completed provider call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec llm.UsageRecord) error
}

type ctxKey string

const sessionIDKey ctxKey = "session_id"

// WithSessionID attributes calls made with ctx to a live session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
