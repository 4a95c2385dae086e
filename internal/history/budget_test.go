package history

import (
	"reflect"
	"testing"
)

func entriesOf(contents ...string) []Entry {
	out := make([]Entry, 0, len(contents))
	for _, c := range contents {
		out = append(out, Entry{Role: "user", Content: c})
	}
	return out
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"hello", 1},
		{"hello world", 2},
		{"  spaced   out\twords\n", 3},
	}
	for _, tc := range cases {
		if got := WordCount(tc.content); got != tc.want {
			t.Errorf("WordCount(%q) = %d, want %d", tc.content, got, tc.want)
		}
	}
}

func TestTrimToBudgetUnderBudgetUnchanged(t *testing.T) {
	in := entriesOf("one two", "three four five")
	got := TrimToBudget(in, 10, nil)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("TrimToBudget changed an under-budget history: got %v", got)
	}
}

func TestTrimToBudgetEmptyInput(t *testing.T) {
	if got := TrimToBudget(nil, 512, nil); len(got) != 0 {
		t.Errorf("expected empty output for empty input, got %v", got)
	}
}

func TestTrimToBudgetRemovesOldestFirst(t *testing.T) {
	in := entriesOf("a a a a", "b b b b", "c c c c")
	got := TrimToBudget(in, 8, nil)

	want := entriesOf("b b b b", "c c c c")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TrimToBudget = %v, want %v", got, want)
	}
}

// The output must always be a suffix of the input.
func TestTrimToBudgetOutputIsSuffix(t *testing.T) {
	in := entriesOf("one", "two words", "three words here", "four whole words now")
	for budget := 0; budget <= 12; budget++ {
		got := TrimToBudget(in, budget, nil)
		if len(got) > len(in) {
			t.Fatalf("budget %d: output longer than input", budget)
		}
		suffix := in[len(in)-len(got):]
		if !reflect.DeepEqual(got, suffix) {
			t.Errorf("budget %d: output %v is not a suffix of input", budget, got)
		}
	}
}

func TestTrimToBudgetKeepsLoneOversizedEntry(t *testing.T) {
	in := entriesOf("short", "this final message has far too many words to ever fit")
	got := TrimToBudget(in, 3, nil)

	if len(got) != 1 {
		t.Fatalf("expected a single remaining entry, got %d", len(got))
	}
	if got[0] != in[1] {
		t.Errorf("expected the newest entry to survive, got %v", got[0])
	}
}

func TestTrimToBudgetCustomCounter(t *testing.T) {
	perEntry := func(string) int { return 1 }
	in := entriesOf("a", "b", "c", "d")
	got := TrimToBudget(in, 2, perEntry)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries with per-entry counter, got %d", len(got))
	}
	if got[0].Content != "c" || got[1].Content != "d" {
		t.Errorf("expected the two newest entries, got %v", got)
	}
}
