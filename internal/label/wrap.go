package label

import "strings"

// MeasureFunc returns the rendered pixel width of a string.
type MeasureFunc func(s string) int

// WrapText breaks text into lines no wider than maxWidth pixels. Words are
// accumulated greedily; a word that alone exceeds maxWidth is hard-split
// rune by rune into the minimal number of fitting lines. No characters are
// lost: joining the lines back with single spaces at the greedy boundaries
// reproduces the input.
func WrapText(text string, maxWidth int, measure MeasureFunc) []string {
	if text == "" {
		return nil
	}

	var lines []string
	current := ""

	flush := func() {
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
	}

	for _, word := range strings.Split(text, " ") {
		if measure(word) > maxWidth {
			// Oversized word: flush what we have, then split the word itself.
			flush()
			lines = append(lines, splitWord(word, maxWidth, measure)...)
			// Continue filling from the last fragment so following words can
			// share its line.
			current = lines[len(lines)-1]
			lines = lines[:len(lines)-1]
			continue
		}

		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}

		flush()
		current = word
	}
	flush()

	return lines
}

// splitWord breaks a single oversized word into fitting fragments. A rune
// wider than maxWidth on its own still gets a line of its own, so the split
// always terminates.
func splitWord(word string, maxWidth int, measure MeasureFunc) []string {
	var fragments []string
	current := ""

	for _, r := range word {
		candidate := current + string(r)
		if current != "" && measure(candidate) > maxWidth {
			fragments = append(fragments, current)
			current = string(r)
			continue
		}
		current = candidate
	}
	if current != "" {
		fragments = append(fragments, current)
	}

	return fragments
}
