// internal/segment/label.go
package segment

import (
	"fmt"
	"strconv"
)

const (
	// labelPasses bounds the fixed-point search for a stable segment count.
	labelPasses = 4
	// minLabeledBody is the smallest usable body width; below it labeling is
	// abandoned and the unlabeled segmentation returned.
	minLabeledBody = 12
)

// labelWidth returns the full length of an "[i/N] " prefix for n segments,
// with i zero padded to the digit count of n.
func labelWidth(n int) int {
	digits := len(strconv.Itoa(n))
	return digits*2 + 4
}

// WithSequenceLabels splits text like Split and, when more than one segment
// results, prefixes each with an "[i/N] " ordinal. Because the label eats
// into the budget, the segmentation is recomputed against the reduced body
// width until the segment count is stable, up to labelPasses passes. If it
// never stabilizes, the last segmentation is labeled directly and any
// overflowing segment hard truncated.
func WithSequenceLabels(text string, maxChars int) []string {
	base := Split(text, maxChars)
	if len(base) <= 1 {
		return base
	}

	segs := base
	for pass := 0; pass < labelPasses; pass++ {
		body := maxChars - labelWidth(len(segs))
		if body < minLabeledBody {
			return base
		}
		next := Split(text, body)
		if len(next) == len(segs) {
			return applyLabels(next, maxChars)
		}
		segs = next
	}
	return applyLabels(segs, maxChars)
}

func applyLabels(segs []string, maxChars int) []string {
	n := len(segs)
	if n <= 1 {
		return segs
	}
	digits := len(strconv.Itoa(n))
	out := make([]string, n)
	for i, seg := range segs {
		labeled := fmt.Sprintf("[%0*d/%d] %s", digits, i+1, n, seg)
		if maxChars > 0 && len(labeled) > maxChars {
			labeled = labeled[:maxChars]
		}
		out[i] = labeled
	}
	return out
}
