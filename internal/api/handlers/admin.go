package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/audit"
)

type UsageSummarizer interface {
	GetUsageSummary(ctx context.Context, startDate, endDate *time.Time) ([]audit.UsageSummary, error)
}

type AdminHandler struct {
	usage UsageSummarizer
}

func NewAdminHandler(usage UsageSummarizer) *AdminHandler {
	return &AdminHandler{usage: usage}
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	startDate, err := parseTimeParam(r, "start_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date: expected RFC3339")
		return
	}
	endDate, err := parseTimeParam(r, "end_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date: expected RFC3339")
		return
	}

	summary, err := h.usage.GetUsageSummary(r.Context(), startDate, endDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": summary})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
