package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/livetranslate/internal/dispatch/dispatchtest"
	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

type reply struct {
	out string
	err error
}

type call struct {
	text   string
	target string
	source string
	reply  chan reply
}

// blockingTranslator hands every call to the test and waits for a reply.
type blockingTranslator struct {
	calls chan *call
}

func newBlockingTranslator() *blockingTranslator {
	return &blockingTranslator{calls: make(chan *call, 16)}
}

func (b *blockingTranslator) Translate(ctx context.Context, text, target, source string, _ models.ModelDescriptor) (string, error) {
	c := &call{text: text, target: target, source: source, reply: make(chan reply, 1)}
	b.calls <- c
	select {
	case r := <-c.reply:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type emptySource bool

func (e emptySource) Empty() bool { return bool(e) }

type harness struct {
	d     *Dispatcher
	sched *dispatchtest.ManualScheduler
	tr    *blockingTranslator
	msgs  chan Message
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		sched: dispatchtest.NewManualScheduler(),
		tr:    newBlockingTranslator(),
		msgs:  make(chan Message, 64),
	}
	opts := Options{
		Translator:     h.tr,
		SourceLanguage: "Japanese",
		TargetLanguage: "English",
		Scheduler:      h.sched,
		Post:           func(m Message) { h.msgs <- m },
		Source:         emptySource(true),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.d = New(opts)
	h.d.Reset(context.Background(), models.ModelDescriptor{ID: "m", Provider: models.ProviderGemini})
	return h
}

func (h *harness) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-h.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatcher message")
		return nil
	}
}

// deliver feeds the next posted message back into the dispatcher the way
// the session loop does.
func (h *harness) deliver(t *testing.T) Message {
	t.Helper()
	m := h.next(t)
	switch m := m.(type) {
	case Fire:
		h.d.HandleFire(m)
	case Result:
		h.d.HandleResult(m)
	}
	return m
}

func (h *harness) nextCall(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-h.tr.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for translation call")
		return nil
	}
}

// callsByText collects n in-flight calls keyed by text.
func (h *harness) callsByText(t *testing.T, n int) map[string]*call {
	t.Helper()
	out := make(map[string]*call, n)
	for i := 0; i < n; i++ {
		c := h.nextCall(t)
		out[c.text] = c
	}
	return out
}

func (h *harness) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-h.tr.calls:
		t.Fatalf("unexpected translation call for %q", c.text)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubmitCoalescesWithinDelay(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Submit("こ")
	h.sched.Advance(300 * time.Millisecond)
	h.d.Submit("こん")
	h.sched.Advance(300 * time.Millisecond)
	h.d.Submit("こんにちは")
	h.sched.Advance(749 * time.Millisecond)

	if len(h.msgs) != 0 {
		t.Fatal("timer fired before the quiet period elapsed")
	}
	if h.sched.Pending() != 1 {
		t.Fatalf("expected exactly one live timer, got %d", h.sched.Pending())
	}

	h.sched.Advance(time.Millisecond)
	if _, ok := h.deliver(t).(Fire); !ok {
		t.Fatal("expected debounce fire")
	}
	c := h.nextCall(t)
	if c.text != "こんにちは" || c.target != "English" || c.source != "Japanese" {
		t.Fatalf("unexpected call %+v", c)
	}
	h.assertNoCall(t)
	if h.d.Calls() != 1 {
		t.Fatalf("expected one execute, got %d", h.d.Calls())
	}
	if !h.d.Display().Translating {
		t.Fatal("expected translating flag while call is in flight")
	}

	c.reply <- reply{out: "Hello"}
	h.deliver(t)
	if got := h.d.Display(); got.Translation != "Hello" || got.Translating || got.Err != nil {
		t.Fatalf("unexpected display %+v", got)
	}
}

func TestQueuedFireIgnoredAfterResubmit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Submit("A")
	h.sched.Advance(DefaultDelay)
	// The fire is queued but not yet handled when a newer submit arrives.
	h.d.Submit("AB")
	h.deliver(t)
	if h.d.Calls() != 0 {
		t.Fatal("stale fire must not execute")
	}

	h.sched.Advance(DefaultDelay)
	h.deliver(t)
	if c := h.nextCall(t); c.text != "AB" {
		t.Fatalf("expected latest text, got %q", c.text)
	}
}

func TestCancelDropsPendingTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Submit("A")
	h.d.Cancel()
	if h.d.Pending() || h.sched.Pending() != 0 {
		t.Fatal("expected no pending timer after cancel")
	}
	h.sched.Advance(time.Second)
	if len(h.msgs) != 0 {
		t.Fatal("cancelled timer fired")
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	t.Parallel()

	t.Run("older resolves last", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		h.d.Execute("A")
		h.d.Execute("B")
		calls := h.callsByText(t, 2)

		calls["B"].reply <- reply{out: "b"}
		if r := h.deliver(t).(Result); !h.isLatest(r) {
			t.Fatal("B should be the latest call")
		}
		calls["A"].reply <- reply{err: errors.New("boom")}
		h.deliver(t)

		got := h.d.Display()
		if got.Translation != "b" || got.Err != nil || got.Translating {
			t.Fatalf("stale failure leaked into display: %+v", got)
		}
	})

	t.Run("older resolves first", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		h.d.Execute("A")
		h.d.Execute("B")
		calls := h.callsByText(t, 2)

		calls["A"].reply <- reply{out: "a"}
		h.deliver(t)
		if got := h.d.Display(); got.Translation != "" || !got.Translating {
			t.Fatalf("stale success leaked into display: %+v", got)
		}

		calls["B"].reply <- reply{out: "b"}
		h.deliver(t)
		if got := h.d.Display(); got.Translation != "b" || got.Translating {
			t.Fatalf("unexpected display %+v", got)
		}
	})

	t.Run("identical text", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		h.d.Execute("A")
		first := h.nextCall(t)
		h.d.Execute("A")
		second := h.nextCall(t)

		first.reply <- reply{out: "first"}
		if h.d.HandleResult(h.next(t).(Result)) {
			t.Fatal("first of two identical submissions must be discarded")
		}
		second.reply <- reply{out: "second"}
		h.deliver(t)
		if got := h.d.Display().Translation; got != "second" {
			t.Fatalf("expected latest result, got %q", got)
		}
	})
}

func (h *harness) isLatest(r Result) bool { return r.Seq == h.d.seq }

func TestFailureSurfacedForLatestCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Execute("A")
	h.nextCall(t).reply <- reply{err: &openai.APIError{HTTPStatusCode: 429, Message: "quota"}}
	h.deliver(t)

	got := h.d.Display()
	var terr *translation.Error
	if !errors.As(got.Err, &terr) || terr.Kind != translation.KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", got.Err)
	}
	if got.Translating {
		t.Fatal("translating flag must clear on failure")
	}

	h.d.Execute("AB")
	if h.d.Display().Err != nil {
		t.Fatal("new execute must clear the prior error")
	}
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.Timeout = 20 * time.Millisecond })

	h.d.Execute("A")
	h.nextCall(t)
	h.deliver(t)

	var terr *translation.Error
	got := h.d.Display()
	if !errors.As(got.Err, &terr) || terr.Kind != translation.KindTimeout {
		t.Fatalf("expected timeout error, got %v", got.Err)
	}
	if got.Translating {
		t.Fatal("translating flag must clear after timeout")
	}
}

func TestEmptySubmitClearsWhenTranscriptEmpty(t *testing.T) {
	t.Parallel()

	var src emptySource
	h := newHarness(t, func(o *Options) { o.Source = &src })

	h.d.Execute("A")
	h.nextCall(t).reply <- reply{out: "a"}
	h.deliver(t)

	h.d.Submit("A")
	h.d.Submit("   ")
	if h.d.Pending() {
		t.Fatal("empty submit must cancel the pending timer")
	}
	if h.d.Display().Translation != "a" {
		t.Fatal("translation cleared while transcript was non-empty")
	}

	src = true
	h.d.Submit("")
	if got := h.d.Display(); got.Translation != "" || got.Translating {
		t.Fatalf("expected cleared display, got %+v", got)
	}
	h.assertNoCall(t)
}

func TestEmptyExecute(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Execute("")
	if h.d.Calls() != 0 {
		t.Fatal("empty execute must not call the translator")
	}

	h.d.Execute("A")
	h.nextCall(t).reply <- reply{out: "a"}
	h.deliver(t)

	h.d.Execute(" ")
	if h.d.Display().Translation != "a" {
		t.Fatal("empty execute after a submission must keep the translation")
	}
	if h.d.LastSubmitted() != "A" {
		t.Fatalf("unexpected last submitted %q", h.d.LastSubmitted())
	}
}

func TestFailAbandonsInFlight(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Execute("A")
	c := h.nextCall(t)
	failure := errors.New("network")
	h.d.Fail(failure)

	c.reply <- reply{out: "a"}
	h.deliver(t)

	got := h.d.Display()
	if got.Err != failure || got.Translation != "" || got.Translating {
		t.Fatalf("in-flight result replaced failure: %+v", got)
	}
}

func TestResetAbandonsInFlight(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.d.Execute("A")
	c := h.nextCall(t)
	h.d.Submit("AB")
	h.d.Reset(context.Background(), models.ModelDescriptor{ID: "m"})

	if h.d.Pending() || h.d.LastSubmitted() != "" {
		t.Fatal("reset must clear timer and last submitted text")
	}
	c.reply <- reply{out: "a"}
	h.deliver(t)
	if got := h.d.Display(); got != (Display{}) {
		t.Fatalf("expected empty display after reset, got %+v", got)
	}
}
