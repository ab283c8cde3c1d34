// Package transcript merges recognized speech fragments into the
// authoritative per-session transcript.
package transcript

import "strings"

// DefaultDisplayLimit is the number of committed fragments kept for display.
const DefaultDisplayLimit = 3

// Segment is one recognized fragment of a result batch.
type Segment struct {
	IsFinal    bool   `json:"is_final"`
	Transcript string `json:"transcript"`
}

// Accumulator holds the committed transcript, the current interim fragment
// and a bounded window of recent committed fragments. It is not safe for
// concurrent use; the session loop owns it.
type Accumulator struct {
	limit     int
	committed strings.Builder
	interim   string
	recent    []string
}

func NewAccumulator(displayLimit int) *Accumulator {
	if displayLimit <= 0 {
		displayLimit = DefaultDisplayLimit
	}
	return &Accumulator{limit: displayLimit}
}

// Apply merges a result batch. Interim text replaces the previous interim
// fragment entirely; final text is appended to the committed transcript.
func (a *Accumulator) Apply(batch []Segment) {
	if len(batch) == 0 {
		return
	}

	var interim, final strings.Builder
	for _, s := range batch {
		if s.IsFinal {
			final.WriteString(s.Transcript)
		} else {
			interim.WriteString(s.Transcript)
		}
	}
	a.interim = strings.TrimSpace(interim.String())

	piece := strings.TrimSpace(final.String())
	if piece == "" {
		return
	}
	if a.committed.Len() > 0 {
		a.committed.WriteByte(' ')
	}
	a.committed.WriteString(piece)

	a.recent = append(a.recent, piece)
	if len(a.recent) > a.limit {
		a.recent = append([]string(nil), a.recent[len(a.recent)-a.limit:]...)
	}
}

// Committed returns the space-joined final fragments.
func (a *Accumulator) Committed() string { return a.committed.String() }

func (a *Accumulator) Interim() string { return a.interim }

// Recent returns a copy of the display window, oldest first.
func (a *Accumulator) Recent() []string {
	return append([]string(nil), a.recent...)
}

// TextToTranslate is the committed transcript plus the interim fragment.
func (a *Accumulator) TextToTranslate() string {
	return joinNonEmpty(a.Committed(), a.interim)
}

// Display is the display window with the interim fragment appended.
func (a *Accumulator) Display() string {
	return joinNonEmpty(strings.Join(a.recent, " "), a.interim)
}

// Empty reports whether there is neither committed nor interim text.
func (a *Accumulator) Empty() bool {
	return a.committed.Len() == 0 && a.interim == ""
}

func (a *Accumulator) ClearInterim() { a.interim = "" }

// Reset discards all session text.
func (a *Accumulator) Reset() {
	a.committed.Reset()
	a.interim = ""
	a.recent = nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
