// internal/segment/split_test.go
package segment

import (
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	if got := Split("", 100); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := Split("hello world", 100); len(got) != 1 || got[0] != "hello world" {
		t.Errorf("Split = %v", got)
	}
	// No budget configured: one segment regardless of length.
	long := strings.Repeat("x ", 500)
	if got := Split(long, 0); len(got) != 1 {
		t.Errorf("unbudgeted Split = %d segments", len(got))
	}
}

func TestSplitExactBudget(t *testing.T) {
	text := strings.Repeat("a", 24)
	got := Split(text, 24)
	if len(got) != 1 || got[0] != text {
		t.Errorf("exact-budget Split = %v", got)
	}
}

func TestSplitRespectsBudgetAndOrder(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	got := Split(text, 24)
	if len(got) < 2 {
		t.Fatalf("expected multiple segments, got %v", got)
	}
	for i, seg := range got {
		if len(seg) > 24 {
			t.Errorf("segment %d exceeds budget: %q (%d)", i, seg, len(seg))
		}
		if seg == "" {
			t.Errorf("empty segment at %d", i)
		}
	}
	joined := strings.Join(got, " ")
	if gotWords, wantWords := strings.Fields(joined), strings.Fields(text); !equalStrings(gotWords, wantWords) {
		t.Errorf("word sequence changed:\n got %v\nwant %v", gotWords, wantWords)
	}
}

func TestSplitLongWord(t *testing.T) {
	word := strings.Repeat("z", 70)
	got := Split(word, 24)
	// ceil(70/24) = 3 chunks: 24, 24, 22
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(got), got)
	}
	if len(got[0]) != 24 || len(got[1]) != 24 {
		t.Errorf("expected full chunks of exactly 24, got %d, %d", len(got[0]), len(got[1]))
	}
	if len(got[2]) != 22 {
		t.Errorf("expected final chunk of 22, got %d", len(got[2]))
	}
	if strings.Join(got, "") != word {
		t.Error("chunks do not reassemble the word")
	}
}

func TestSplitParagraphMerge(t *testing.T) {
	// Text that already fits comes back verbatim, blank line intact.
	got := Split("short one\n\nshort two", 40)
	if len(got) != 1 || got[0] != "short one\n\nshort two" {
		t.Fatalf("fitting text = %v", got)
	}

	// Over budget as a whole: short paragraphs pack into one segment
	// joined by a single newline, until the next one would overflow.
	got = Split("aaaa\n\nbbbb\n\ncccc", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %v", got)
	}
	if got[0] != "aaaa\nbbbb" {
		t.Errorf("merged = %q", got[0])
	}
	if got[1] != "cccc" {
		t.Errorf("tail = %q", got[1])
	}

	// Merge refused when the combined length would overflow.
	got = Split("aaaaaaaa\n\nbbbbbbbb", 10)
	if len(got) != 2 {
		t.Errorf("expected separate segments, got %v", got)
	}
}

func TestSplitParagraphBoundaries(t *testing.T) {
	par1 := strings.Repeat("alpha ", 10) // 60 chars
	par2 := "tail"
	got := Split(strings.TrimSpace(par1)+"\n\n"+par2, 24)
	for i, seg := range got {
		if len(seg) > 24 {
			t.Errorf("segment %d over budget: %q", i, seg)
		}
	}
	last := got[len(got)-1]
	if !strings.Contains(last, "tail") {
		t.Errorf("tail paragraph missing from %v", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
