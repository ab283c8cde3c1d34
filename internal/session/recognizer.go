package session

import (
	"context"

	"github.com/nikhilbhutani/livetranslate/internal/transcript"
)

// RecognitionConfig is handed to the recognizer when a session starts.
type RecognitionConfig struct {
	Language       string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}

// Recognizer is the external speech-recognition capability. Lifecycle
// signals and results are delivered to the Sink passed to Start, in order.
type Recognizer interface {
	// Available reports whether recognition is possible in this environment.
	Available() bool
	Start(ctx context.Context, cfg RecognitionConfig, sink Sink) error
	// Stop ends recognition gracefully; the recognizer reports Ended later.
	Stop() error
	// Abort ends recognition immediately, discarding pending results.
	Abort() error
}

// Sink receives recognition events. Implementations must not block.
type Sink interface {
	Started()
	Result(ResultEvent)
	Ended()
	Failed(code, message string)
}

// Alternative is one hypothesis for a recognized result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is one entry of a recognition result list.
type Result struct {
	IsFinal      bool          `json:"is_final"`
	Alternatives []Alternative `json:"alternatives"`
}

// ResultEvent carries the result list of a recognition event. Entries
// before ResultIndex are unchanged since the previous event.
type ResultEvent struct {
	ResultIndex int      `json:"result_index"`
	Results     []Result `json:"results"`
}

// Segments converts the changed results into transcript segments, taking
// the first alternative of each.
func (e ResultEvent) Segments() []transcript.Segment {
	start := e.ResultIndex
	if start < 0 {
		start = 0
	}
	if start >= len(e.Results) {
		return nil
	}

	out := make([]transcript.Segment, 0, len(e.Results)-start)
	for _, r := range e.Results[start:] {
		if len(r.Alternatives) == 0 {
			continue
		}
		out = append(out, transcript.Segment{IsFinal: r.IsFinal, Transcript: r.Alternatives[0].Transcript})
	}
	return out
}
