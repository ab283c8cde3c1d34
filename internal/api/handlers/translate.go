package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

type TranslateConfig struct {
	Translator     translation.Translator
	Models         modelstore.Provider
	ModelID        string
	SourceLanguage string
	TargetLanguage string
	Timeout        time.Duration
}

type TranslateHandler struct {
	cfg TranslateConfig
}

func NewTranslateHandler(cfg TranslateConfig) *TranslateHandler {
	return &TranslateHandler{cfg: cfg}
}

type translateRequest struct {
	Text           string `json:"text"`
	ModelID        string `json:"model_id"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	Translation string `json:"translation"`
	ModelID     string `json:"model_id"`
}

// Translate runs a single translation outside of a live session.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = h.cfg.ModelID
	}
	model, err := modelstore.Resolve(r.Context(), h.cfg.Models, modelID)
	if err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	source := firstNonEmpty(req.SourceLanguage, h.cfg.SourceLanguage)
	target := firstNonEmpty(req.TargetLanguage, h.cfg.TargetLanguage)

	ctx := r.Context()
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	out, err := h.cfg.Translator.Translate(ctx, req.Text, target, source, model)
	if err != nil {
		terr := translation.Classify(err, string(model.Provider))
		writeJSON(w, statusForKind(terr.Kind), map[string]string{
			"error": terr.Message(),
			"kind":  string(terr.Kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{Translation: out, ModelID: model.ID})
}

func statusForKind(k translation.Kind) int {
	switch k {
	case translation.KindRateLimit:
		return http.StatusTooManyRequests
	case translation.KindContentBlocked:
		return http.StatusUnprocessableEntity
	case translation.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
