package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
)

type ModelHandler struct {
	models   modelstore.Provider
	activeID string
}

func NewModelHandler(p modelstore.Provider, activeID string) *ModelHandler {
	return &ModelHandler{models: p, activeID: activeID}
}

// List returns the configured models with credentials redacted.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.models.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]models.ModelDescriptor, 0, len(list))
	for _, d := range list {
		out = append(out, d.Redact())
	}

	active := h.activeID
	if active == "" && len(out) > 0 {
		active = out[0].ID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": out, "active_model_id": active})
}
