// Package dispatch debounces transcript changes into translation calls and
// applies only the outcome of the most recent call.
//
// A Dispatcher is owned by a single goroutine (the session loop). Timer
// expirations and translation completions happen elsewhere and are handed
// back to that goroutine through the Post callback as Fire and Result
// messages, which the owner feeds to HandleFire and HandleResult.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

const (
	DefaultDelay   = 750 * time.Millisecond
	DefaultTimeout = 15 * time.Second
)

// Message is delivered to the owning goroutine through Options.Post.
type Message interface {
	dispatchMessage()
}

// Fire reports that the debounce timer armed for Text expired.
type Fire struct {
	Gen  uint64
	Text string
}

// Result is the outcome of one translation call.
type Result struct {
	Seq         uint64
	Text        string
	Translation string
	Err         error
	Elapsed     time.Duration
}

func (Fire) dispatchMessage()   {}
func (Result) dispatchMessage() {}

// Source reports whether the session has any transcript text at all.
type Source interface {
	Empty() bool
}

// Display is the translation-facing part of the display surface.
type Display struct {
	Translation string
	Translating bool
	Err         error
}

type Options struct {
	Translator     translation.Translator
	SourceLanguage string
	TargetLanguage string
	Delay          time.Duration
	Timeout        time.Duration
	Scheduler      Scheduler
	Post           func(Message)
	Source         Source
	Logger         *slog.Logger
}

type Dispatcher struct {
	translator translation.Translator
	source     string
	target     string
	delay      time.Duration
	timeout    time.Duration
	scheduler  Scheduler
	post       func(Message)
	transcript Source
	logger     *slog.Logger

	ctx   context.Context
	model models.ModelDescriptor

	stop  func() bool
	gen   uint64
	seq   uint64
	last  string
	calls int

	display Display
}

func New(opts Options) *Dispatcher {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		translator: opts.Translator,
		source:     opts.SourceLanguage,
		target:     opts.TargetLanguage,
		delay:      opts.Delay,
		timeout:    opts.Timeout,
		scheduler:  opts.Scheduler,
		post:       opts.Post,
		transcript: opts.Source,
		logger:     opts.Logger,
		ctx:        context.Background(),
	}
}

// Reset starts a new session: the pending timer is cancelled, in-flight
// results are abandoned and the display is cleared. Calls issued afterwards
// run under ctx with model.
func (d *Dispatcher) Reset(ctx context.Context, model models.ModelDescriptor) {
	d.Cancel()
	d.seq++
	d.ctx = ctx
	d.model = model
	d.last = ""
	d.display = Display{}
}

// Submit schedules text for translation after the debounce delay,
// superseding any pending submission.
func (d *Dispatcher) Submit(text string) {
	d.Cancel()
	if strings.TrimSpace(text) == "" {
		if d.transcript == nil || d.transcript.Empty() {
			d.ClearTranslation()
		}
		return
	}

	gen := d.gen
	d.stop = d.scheduler.AfterFunc(d.delay, func() {
		d.post(Fire{Gen: gen, Text: text})
	})
}

// Cancel drops the pending debounce timer. A Fire already queued for it is
// ignored by HandleFire.
func (d *Dispatcher) Cancel() {
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.gen++
}

// Pending reports whether a debounce timer is armed.
func (d *Dispatcher) Pending() bool { return d.stop != nil }

func (d *Dispatcher) HandleFire(f Fire) {
	if d.stop == nil || f.Gen != d.gen {
		d.logger.Debug("dropping cancelled debounce fire", "gen", f.Gen)
		return
	}
	d.stop = nil
	d.Execute(f.Text)
}

// Execute starts a translation of text immediately. Only the latest call's
// outcome is ever applied.
func (d *Dispatcher) Execute(text string) {
	if strings.TrimSpace(text) == "" {
		if d.last == text || d.last == "" {
			d.ClearTranslation()
		}
		return
	}

	d.seq++
	d.last = text
	d.calls++
	d.display.Translating = true
	d.display.Err = nil

	seq, ctx, model := d.seq, d.ctx, d.model
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		start := time.Now()
		out, err := d.translator.Translate(callCtx, text, d.target, d.source, model)
		d.post(Result{Seq: seq, Text: text, Translation: out, Err: err, Elapsed: time.Since(start)})
	}()
}

// HandleResult applies r if it belongs to the latest call. It reports
// whether the result was applied.
func (d *Dispatcher) HandleResult(r Result) bool {
	if r.Seq != d.seq {
		d.logger.Debug("discarding stale translation result",
			"seq", r.Seq,
			"latest_seq", d.seq,
			"failed", r.Err != nil,
		)
		return false
	}

	d.display.Translating = false
	if r.Err != nil {
		terr := translation.Classify(r.Err, string(d.model.Provider))
		d.logger.Warn("translation failed",
			"seq", r.Seq,
			"kind", terr.Kind,
			"error", r.Err,
		)
		d.display.Err = terr
		return true
	}

	d.logger.Debug("translation applied", "seq", r.Seq, "elapsed_ms", r.Elapsed.Milliseconds())
	d.display.Translation = r.Translation
	d.display.Err = nil
	return true
}

// Fail surfaces err, stops showing progress and abandons any in-flight
// call so its outcome cannot replace err.
func (d *Dispatcher) Fail(err error) {
	d.Abandon()
	d.display.Err = err
}

// SetError surfaces err without touching in-flight calls.
func (d *Dispatcher) SetError(err error) {
	d.display.Err = err
}

// ClearTranslation empties the displayed translation.
func (d *Dispatcher) ClearTranslation() {
	d.display.Translation = ""
	d.display.Translating = false
}

// Abandon discards the outcome of any in-flight call.
func (d *Dispatcher) Abandon() {
	d.Cancel()
	d.seq++
	d.display.Translating = false
}

// LastSubmitted is the text of the most recent Execute.
func (d *Dispatcher) LastSubmitted() string { return d.last }

// Calls returns the number of translation calls issued so far.
func (d *Dispatcher) Calls() int { return d.calls }

func (d *Dispatcher) Display() Display { return d.display }
