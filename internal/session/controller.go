// Package session runs one live captioning session: it drives the speech
// recognizer, feeds recognized fragments into the transcript and hands the
// resulting text to the translation dispatcher.
//
// All session state is owned by a single loop goroutine. Public methods,
// recognizer callbacks, debounce timers and translation completions only
// post messages to that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/livetranslate/internal/dispatch"
	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
	"github.com/nikhilbhutani/livetranslate/internal/segment"
	"github.com/nikhilbhutani/livetranslate/internal/transcript"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

// State is the recognition lifecycle state.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the display surface of a session.
type Snapshot struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	// Transcript is the recent committed fragments with the interim
	// fragment appended.
	Transcript string `json:"transcript"`
	// Translation is the most recent translated sentences.
	Translation string `json:"translation"`
	Translating bool   `json:"translating"`
	Error       string `json:"error,omitempty"`
}

// Sentences splits the displayed translation into sentences.
func (s Snapshot) Sentences() []string {
	return segment.Split(s.Translation)
}

type Options struct {
	Recognizer Recognizer
	Translator translation.Translator
	Models     modelstore.Provider
	// ModelID selects the model when Start is given none. Empty selects
	// the first configured model.
	ModelID string

	SourceLanguage    string
	TargetLanguage    string
	RecognitionLocale string

	Debounce     time.Duration
	Timeout      time.Duration
	Scheduler    dispatch.Scheduler
	DisplayLimit int

	// Observer is called from the session loop whenever the snapshot
	// changes. It must not block or call back into the Controller.
	Observer func(Snapshot)
	Logger   *slog.Logger
}

type Controller struct {
	id       string
	rec      Recognizer
	models   modelstore.Provider
	modelID  string
	recCfg   RecognitionConfig
	limit    int
	observer func(Snapshot)
	logger   *slog.Logger

	mb        *mailbox
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	base      context.Context
	cancelAll context.CancelFunc
	cancelRun context.CancelFunc
	state     State
	active    bool
	gen       uint64
	acc       *transcript.Accumulator
	disp      *dispatch.Dispatcher
	published Snapshot

	// final is written by the loop before done is closed.
	final Snapshot
}

func New(opts Options) (*Controller, error) {
	if opts.Recognizer == nil {
		return nil, errors.New("session: recognizer is required")
	}
	if opts.Translator == nil {
		return nil, errors.New("session: translator is required")
	}
	if opts.Models == nil {
		return nil, errors.New("session: model provider is required")
	}
	if opts.DisplayLimit <= 0 {
		opts.DisplayLimit = transcript.DefaultDisplayLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	logger := opts.Logger.With("session_id", id)
	base, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:      id,
		rec:     opts.Recognizer,
		models:  opts.Models,
		modelID: opts.ModelID,
		recCfg: RecognitionConfig{
			Language:       opts.RecognitionLocale,
			Continuous:     true,
			InterimResults: true,
		},
		limit:     opts.DisplayLimit,
		observer:  opts.Observer,
		logger:    logger,
		mb:        newMailbox(),
		done:      make(chan struct{}),
		base:      translation.WithSessionID(base, id),
		cancelAll: cancel,
		acc:       transcript.NewAccumulator(opts.DisplayLimit),
	}
	c.disp = dispatch.New(dispatch.Options{
		Translator:     opts.Translator,
		SourceLanguage: opts.SourceLanguage,
		TargetLanguage: opts.TargetLanguage,
		Delay:          opts.Debounce,
		Timeout:        opts.Timeout,
		Scheduler:      opts.Scheduler,
		Post:           func(m dispatch.Message) { c.mb.put(m) },
		Source:         c.acc,
		Logger:         logger,
	})
	c.published = c.snapshot()

	go c.loop()
	return c, nil
}

func (c *Controller) ID() string { return c.id }

type (
	startCmd struct {
		model models.ModelDescriptor
		reply chan error
	}
	stopCmd struct {
		reply chan error
	}
	snapshotCmd struct {
		reply chan Snapshot
	}
	closeCmd struct{}

	recognitionStarted struct{ gen uint64 }
	recognitionResult  struct {
		gen   uint64
		event ResultEvent
	}
	recognitionEnded  struct{ gen uint64 }
	recognitionFailed struct {
		gen     uint64
		code    string
		message string
	}
)

// Start begins a new listening session with the given model, or the
// configured default when modelID is empty. A session already in progress
// is aborted and its state discarded.
func (c *Controller) Start(ctx context.Context, modelID string) error {
	if !c.rec.Available() {
		// The loop reports the failure so the display carries it.
		return c.request(func(reply chan error) any { return startCmd{reply: reply} })
	}
	if modelID == "" {
		modelID = c.modelID
	}
	model, err := modelstore.Resolve(ctx, c.models, modelID)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}
	return c.request(func(reply chan error) any { return startCmd{model: model, reply: reply} })
}

// Stop asks the recognizer to finish. The session becomes idle once the
// recognizer reports the end of recognition.
func (c *Controller) Stop() error {
	return c.request(func(reply chan error) any { return stopCmd{reply: reply} })
}

func (c *Controller) request(build func(chan error) any) error {
	reply := make(chan error, 1)
	if !c.mb.put(build(reply)) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// Snapshot returns the current display surface. After Close it returns the
// final state.
func (c *Controller) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if c.mb.put(snapshotCmd{reply: reply}) {
		select {
		case s := <-reply:
			return s
		case <-c.done:
		}
	}
	<-c.done
	return c.final
}

// Close aborts recognition, drops any pending translation and stops the
// session loop. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.mb.put(closeCmd{})
	})
	<-c.done
	return nil
}

func (c *Controller) loop() {
	for range c.mb.notify {
		for _, msg := range c.mb.drain() {
			if _, ok := msg.(closeCmd); ok {
				c.teardown()
				return
			}
			c.handle(msg)
			c.publish()
		}
	}
}

func (c *Controller) handle(msg any) {
	switch m := msg.(type) {
	case startCmd:
		m.reply <- c.start(m.model)
	case stopCmd:
		m.reply <- c.stop()
	case snapshotCmd:
		m.reply <- c.snapshot()
	case recognitionStarted:
		c.onStarted(m.gen)
	case recognitionResult:
		c.onResult(m.gen, m.event)
	case recognitionEnded:
		c.onEnded(m.gen)
	case recognitionFailed:
		c.onFailed(m.gen, m.code, m.message)
	case dispatch.Fire:
		c.disp.HandleFire(m)
	case dispatch.Result:
		c.disp.HandleResult(m)
	default:
		c.logger.Warn("unknown session message", "type", fmt.Sprintf("%T", msg))
	}
}

func (c *Controller) start(model models.ModelDescriptor) error {
	if !c.rec.Available() {
		c.disp.SetError(ErrUnsupported)
		return ErrUnsupported
	}

	if c.active {
		if err := c.rec.Abort(); err != nil {
			c.logger.Warn("failed to abort previous recognition", "error", err)
		}
	}
	if c.cancelRun != nil {
		c.cancelRun()
	}

	c.gen++
	c.state = Idle
	c.active = false
	runCtx, cancel := context.WithCancel(c.base)
	c.cancelRun = cancel
	c.acc.Reset()
	c.disp.Reset(runCtx, model)

	if err := c.rec.Start(runCtx, c.recCfg, &sink{mb: c.mb, gen: c.gen}); err != nil {
		err = fmt.Errorf("start recognizer: %w", err)
		c.disp.SetError(err)
		return err
	}
	c.active = true
	c.logger.Info("recognition starting", "model_id", model.ID, "lang", c.recCfg.Language)
	return nil
}

func (c *Controller) stop() error {
	if c.state != Listening {
		return ErrNotListening
	}
	if err := c.rec.Stop(); err != nil {
		return fmt.Errorf("stop recognizer: %w", err)
	}
	return nil
}

func (c *Controller) current(gen uint64, event string) bool {
	if gen != c.gen || !c.active {
		c.logger.Debug("dropping recognition event", "event", event, "gen", gen)
		return false
	}
	return true
}

func (c *Controller) onStarted(gen uint64) {
	if !c.current(gen, "start") {
		return
	}
	c.state = Listening
	c.logger.Info("recognition started")
}

func (c *Controller) onResult(gen uint64, ev ResultEvent) {
	if !c.current(gen, "result") || c.state != Listening {
		return
	}

	c.acc.Apply(ev.Segments())
	if text := c.acc.TextToTranslate(); text != "" {
		c.disp.Submit(text)
		return
	}
	c.disp.Cancel()
	c.disp.ClearTranslation()
}

func (c *Controller) onEnded(gen uint64) {
	if !c.current(gen, "end") {
		return
	}
	c.active = false
	if c.state != Listening {
		return
	}
	c.state = Idle
	c.acc.ClearInterim()
	c.disp.Cancel()

	committed := strings.TrimSpace(c.acc.Committed())
	switch {
	case committed == "":
		c.disp.ClearTranslation()
	case committed != c.disp.LastSubmitted():
		c.disp.Execute(committed)
	}
	c.logger.Info("recognition ended")
}

func (c *Controller) onFailed(gen uint64, code, message string) {
	if !c.current(gen, "error") {
		return
	}
	c.state = Idle
	c.active = false

	rerr := &RecognitionError{Code: code, Detail: message}
	c.logger.Warn("recognition failed", "code", code, "detail", message)
	c.disp.Fail(rerr)
	if err := c.rec.Stop(); err != nil {
		c.logger.Warn("failed to stop recognizer after error", "error", err)
	}
}

func (c *Controller) teardown() {
	if c.active {
		if err := c.rec.Abort(); err != nil {
			c.logger.Warn("failed to abort recognition", "error", err)
		}
	}
	c.active = false
	c.state = Idle
	c.disp.Cancel()
	c.cancelAll()

	c.mb.close()
	c.final = c.snapshot()
	close(c.done)
	c.logger.Info("session closed")
}

func (c *Controller) snapshot() Snapshot {
	d := c.disp.Display()
	return Snapshot{
		SessionID:   c.id,
		State:       c.state,
		Transcript:  c.acc.Display(),
		Translation: strings.Join(segment.Tail(d.Translation, c.limit), " "),
		Translating: d.Translating,
		Error:       errorMessage(d.Err),
	}
}

func (c *Controller) publish() {
	if c.observer == nil {
		return
	}
	s := c.snapshot()
	if s == c.published {
		return
	}
	c.published = s
	c.observer(s)
}

// sink posts recognizer callbacks for one recognition run.
type sink struct {
	mb  *mailbox
	gen uint64
}

func (s *sink) Started() { s.mb.put(recognitionStarted{gen: s.gen}) }

func (s *sink) Result(ev ResultEvent) { s.mb.put(recognitionResult{gen: s.gen, event: ev}) }

func (s *sink) Ended() { s.mb.put(recognitionEnded{gen: s.gen}) }

func (s *sink) Failed(code, message string) {
	s.mb.put(recognitionFailed{gen: s.gen, code: code, message: message})
}
