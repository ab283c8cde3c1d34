package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nikhilbhutani/livetranslate/internal/api/middleware"
	"github.com/nikhilbhutani/livetranslate/internal/session"
	"github.com/nikhilbhutani/livetranslate/internal/speech"
)

type SessionHandler struct {
	opts     session.Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewSessionHandler serves live sessions. opts is the template for every
// session; its Recognizer and Observer are set per connection.
func NewSessionHandler(opts session.Options, allowedOrigins []string) *SessionHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Live upgrades the request and runs one session for the lifetime of the
// connection.
func (h *SessionHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rec := speech.NewRemoteRecognizer(conn, h.logger)
	opts := h.opts
	opts.Recognizer = rec
	opts.Observer = rec.SendSnapshot

	ctrl, err := session.New(opts)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		_ = conn.WriteJSON(speech.ErrorMessage{Type: speech.TypeError, Error: "session unavailable"})
		return
	}
	defer ctrl.Close()

	h.logger.Info("live session connected", "session_id", ctrl.ID(), "remote_addr", r.RemoteAddr)
	if err := rec.Serve(r.Context(), ctrl); err != nil {
		h.logger.Warn("live session ended with error", "session_id", ctrl.ID(), "error", err)
		return
	}
	h.logger.Info("live session disconnected", "session_id", ctrl.ID())
}
