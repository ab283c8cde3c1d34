package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/cache"
	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// CachedTranslator serves repeated (model, languages, text) requests from
// Redis. Cache failures never fail a translation.
type CachedTranslator struct {
	next   Translator
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTranslator(next Translator, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedTranslator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedTranslator{next: next, cache: c, ttl: ttl, logger: logger}
}

func (t *CachedTranslator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string, model models.ModelDescriptor) (string, error) {
	key := cacheKey(text, targetLanguage, sourceLanguage, model)

	var cached string
	err := t.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, cache.ErrMiss):
		t.logger.Warn("translation cache read failed", "error", err)
	}

	out, err := t.next.Translate(ctx, text, targetLanguage, sourceLanguage, model)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, key, out, t.ttl); err != nil {
		t.logger.Warn("translation cache write failed", "error", err)
	}
	return out, nil
}

func cacheKey(text, target, source string, model models.ModelDescriptor) string {
	h := sha256.New()
	for _, part := range []string{model.ID, model.ModelAPIName, source, target, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
