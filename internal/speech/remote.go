// Package speech bridges a browser's speech recognition to a live session
// over a WebSocket. The browser runs recognition and streams lifecycle and
// result events; the server answers with recognizer commands and display
// snapshots.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilbhutani/livetranslate/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// ErrClosed is returned by recognizer commands after the connection ends.
var ErrClosed = errors.New("speech connection closed")

// Client message types.
const (
	TypeHello             = "hello"
	TypeStart             = "start"
	TypeStop              = "stop"
	TypeRecognitionStart  = "recognition.start"
	TypeRecognitionResult = "recognition.result"
	TypeRecognitionEnd    = "recognition.end"
	TypeRecognitionError  = "recognition.error"
)

// Server message types.
const (
	TypeRecognizer = "recognizer"
	TypeSnapshot   = "snapshot"
	TypeError      = "error"
)

// ClientMessage is any message sent by the browser. Recognition events
// echo the Run of the recognizer command that started them.
type ClientMessage struct {
	Type            string           `json:"type"`
	Run             uint64           `json:"run,omitempty"`
	SpeechSupported bool             `json:"speech_supported,omitempty"`
	ModelID         string           `json:"model_id,omitempty"`
	ResultIndex     int              `json:"result_index,omitempty"`
	Results         []session.Result `json:"results,omitempty"`
	Error           string           `json:"error,omitempty"`
	Message         string           `json:"message,omitempty"`
}

// RecognizerCommand tells the browser to start, stop or abort recognition
// run Run.
type RecognizerCommand struct {
	Type           string `json:"type"`
	Action         string `json:"action"`
	Run            uint64 `json:"run"`
	Lang           string `json:"lang,omitempty"`
	Continuous     bool   `json:"continuous,omitempty"`
	InterimResults bool   `json:"interim_results,omitempty"`
}

// SnapshotMessage carries the session display surface.
type SnapshotMessage struct {
	Type        string   `json:"type"`
	SessionID   string   `json:"session_id"`
	State       string   `json:"state"`
	Transcript  string   `json:"transcript"`
	Translation string   `json:"translation"`
	Sentences   []string `json:"sentences"`
	Translating bool     `json:"translating"`
	Error       string   `json:"error,omitempty"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Controller is the part of a session driven by client commands.
type Controller interface {
	Start(ctx context.Context, modelID string) error
	Stop() error
}

// RemoteRecognizer implements session.Recognizer on top of a WebSocket
// connection. Writes are serialized through a single writer goroutine
// started by Serve; snapshots are coalesced so a slow client only ever
// receives the latest one.
type RemoteRecognizer struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu        sync.Mutex
	supported bool
	run       uint64
	sink      session.Sink
	snapshot  *SnapshotMessage

	out       chan any
	snapReady chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewRemoteRecognizer(conn *websocket.Conn, logger *slog.Logger) *RemoteRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteRecognizer{
		conn:      conn,
		logger:    logger,
		out:       make(chan any, 16),
		snapReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Available reports whether the client announced speech support.
func (r *RemoteRecognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

// Start begins a new recognition run. Events tagged with any earlier run
// are dropped from then on.
func (r *RemoteRecognizer) Start(_ context.Context, cfg session.RecognitionConfig, sink session.Sink) error {
	r.mu.Lock()
	r.run++
	run := r.run
	r.sink = sink
	r.mu.Unlock()

	return r.send(RecognizerCommand{
		Type:           TypeRecognizer,
		Action:         "start",
		Run:            run,
		Lang:           cfg.Language,
		Continuous:     cfg.Continuous,
		InterimResults: cfg.InterimResults,
	})
}

func (r *RemoteRecognizer) Stop() error {
	r.mu.Lock()
	run := r.run
	r.mu.Unlock()
	return r.send(RecognizerCommand{Type: TypeRecognizer, Action: "stop", Run: run})
}

func (r *RemoteRecognizer) Abort() error {
	r.mu.Lock()
	run := r.run
	r.sink = nil
	r.mu.Unlock()
	return r.send(RecognizerCommand{Type: TypeRecognizer, Action: "abort", Run: run})
}

// SendSnapshot queues s for delivery, replacing any undelivered snapshot.
// It never blocks, so it can serve as a session observer.
func (r *RemoteRecognizer) SendSnapshot(s session.Snapshot) {
	msg := &SnapshotMessage{
		Type:        TypeSnapshot,
		SessionID:   s.SessionID,
		State:       s.State.String(),
		Transcript:  s.Transcript,
		Translation: s.Translation,
		Sentences:   s.Sentences(),
		Translating: s.Translating,
		Error:       s.Error,
	}

	r.mu.Lock()
	r.snapshot = msg
	r.mu.Unlock()

	select {
	case r.snapReady <- struct{}{}:
	default:
	}
}

// SendError queues an error message for the client.
func (r *RemoteRecognizer) SendError(msg string) error {
	return r.send(ErrorMessage{Type: TypeError, Error: msg})
}

func (r *RemoteRecognizer) send(msg any) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.out <- msg:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Serve reads client messages until the connection closes or ctx ends.
// Lifecycle and result events go to the sink of the current recognition
// run; start and stop requests go to ctrl.
func (r *RemoteRecognizer) Serve(ctx context.Context, ctrl Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		r.writeLoop(ctx)
	}()
	defer func() {
		r.closeOnce.Do(func() { close(r.done) })
		cancel()
		<-writerDone
	}()

	r.conn.SetReadLimit(maxMessageSize)
	_ = r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Debug("invalid client message", "error", err)
			_ = r.SendError("invalid message")
			continue
		}
		r.handle(ctx, ctrl, msg)
	}
}

func (r *RemoteRecognizer) handle(ctx context.Context, ctrl Controller, msg ClientMessage) {
	switch msg.Type {
	case TypeHello:
		r.mu.Lock()
		r.supported = msg.SpeechSupported
		r.mu.Unlock()
	case TypeStart:
		if err := ctrl.Start(ctx, msg.ModelID); err != nil && !errors.Is(err, session.ErrUnsupported) {
			_ = r.SendError(err.Error())
		}
	case TypeStop:
		if err := ctrl.Stop(); err != nil {
			_ = r.SendError(err.Error())
		}
	case TypeRecognitionStart, TypeRecognitionResult, TypeRecognitionEnd, TypeRecognitionError:
		r.deliver(msg)
	default:
		_ = r.SendError("unknown message type: " + msg.Type)
	}
}

func (r *RemoteRecognizer) deliver(msg ClientMessage) {
	r.mu.Lock()
	sink, run := r.sink, r.run
	r.mu.Unlock()
	if sink == nil || msg.Run != run {
		r.logger.Debug("dropping recognition event", "type", msg.Type, "run", msg.Run, "current_run", run)
		return
	}

	switch msg.Type {
	case TypeRecognitionStart:
		sink.Started()
	case TypeRecognitionResult:
		sink.Result(session.ResultEvent{ResultIndex: msg.ResultIndex, Results: msg.Results})
	case TypeRecognitionEnd:
		sink.Ended()
	case TypeRecognitionError:
		sink.Failed(msg.Error, msg.Message)
	}
}

func (r *RemoteRecognizer) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = r.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-r.out:
			if err := r.write(msg); err != nil {
				r.logger.Debug("websocket write failed", "error", err)
				_ = r.conn.Close()
				return
			}
		case <-r.snapReady:
			r.mu.Lock()
			msg := r.snapshot
			r.snapshot = nil
			r.mu.Unlock()
			if msg == nil {
				continue
			}
			if err := r.write(msg); err != nil {
				r.logger.Debug("websocket write failed", "error", err)
				_ = r.conn.Close()
				return
			}
		case <-ticker.C:
			if err := r.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = r.conn.Close()
				return
			}
		}
	}
}

func (r *RemoteRecognizer) write(msg any) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteJSON(msg)
}
