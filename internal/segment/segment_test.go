package segment

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"mixed", "Hello world. How are you? Fine", []string{"Hello world.", "How are you?", "Fine"}},
		{"empty", "", []string{}},
		{"whitespace", "  \n\t ", []string{}},
		{"single unterminated", "just words", []string{"just words"}},
		{"repeated punctuation", "Wait!! Really?! Yes...", []string{"Wait!!", "Really?!", "Yes..."}},
		{"punctuation only", "...", []string{"..."}},
		{"surrounding space", "  One.  Two.  ", []string{"One.", "Two."}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Split(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Split(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitIdempotent(t *testing.T) {
	t.Parallel()

	first := Split("A. B? C")
	var joined string
	for i, s := range first {
		if i > 0 {
			joined += " "
		}
		joined += s
	}
	if second := Split(joined); !reflect.DeepEqual(first, second) {
		t.Fatalf("expected stable split, got %q then %q", first, second)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	got := Tail("One. Two. Three. Four. Five", 3)
	want := []string{"Three.", "Four.", "Five"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tail = %q, want %q", got, want)
	}
	if got := Tail("One.", 3); !reflect.DeepEqual(got, []string{"One."}) {
		t.Fatalf("unexpected short tail %q", got)
	}
	if got := Tail("One.", 0); len(got) != 0 {
		t.Fatalf("expected empty tail, got %q", got)
	}
}
