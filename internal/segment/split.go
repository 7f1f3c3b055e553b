// internal/segment/split.go
package segment

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Split breaks text into segments no longer than maxChars each, preserving
// word order and never dropping content. A non-positive budget, or text that
// already fits, yields a single segment. Splitting prefers paragraph
// boundaries, then whitespace; a single word longer than the budget is hard
// sliced into budget-sized chunks.
func Split(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var segs []string
	for _, par := range paragraphBreak.Split(text, -1) {
		par = strings.TrimSpace(par)
		if par == "" {
			continue
		}

		if len(par) <= maxChars {
			// Merge a short paragraph into the previous segment when the
			// combined length (with a newline) still fits.
			if n := len(segs); n > 0 && len(segs[n-1])+1+len(par) <= maxChars {
				segs[n-1] += "\n" + par
			} else {
				segs = append(segs, par)
			}
			continue
		}

		segs = append(segs, packWords(par, maxChars)...)
	}

	// Non-empty input must never produce zero segments.
	if len(segs) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		if len(trimmed) > maxChars {
			trimmed = trimmed[:maxChars]
		}
		return []string{trimmed}
	}
	return segs
}

// packWords greedily packs whitespace-delimited words into segments of at
// most maxChars, hard-slicing any word that alone exceeds the budget.
func packWords(par string, maxChars int) []string {
	var segs []string
	var cur string

	flush := func() {
		if cur != "" {
			segs = append(segs, cur)
			cur = ""
		}
	}

	for _, word := range strings.Fields(par) {
		if len(word) > maxChars {
			flush()
			for len(word) > maxChars {
				segs = append(segs, word[:maxChars])
				word = word[maxChars:]
			}
			cur = word
			continue
		}
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) <= maxChars:
			cur += " " + word
		default:
			flush()
			cur = word
		}
	}
	flush()
	return segs
}
