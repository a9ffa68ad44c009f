package label_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-labeling/internal/label"
)

// runeWidth gives every rune a width of 1 so limits read as rune counts.
func runeWidth(s string) int {
	return len([]rune(s))
}

func TestWrapTextGreedy(t *testing.T) {
	lines := label.WrapText("говядина соль перец вода", 14, runeWidth)
	assert.Equal(t, []string{"говядина соль", "перец вода"}, lines)
}

func TestWrapTextFitsOneLine(t *testing.T) {
	lines := label.WrapText("соль перец", 50, runeWidth)
	assert.Equal(t, []string{"соль перец"}, lines)
}

func TestWrapTextEmpty(t *testing.T) {
	assert.Nil(t, label.WrapText("", 10, runeWidth))
}

func TestWrapTextSplitsOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 40)
	lines := label.WrapText(word, 10, runeWidth)

	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.LessOrEqual(t, runeWidth(line), 10)
	}
	// Lossless: the fragments concatenate back to the original word.
	assert.Equal(t, word, strings.Join(lines, ""))
}

func TestWrapTextOversizedWordMidText(t *testing.T) {
	long := strings.Repeat("о", 25)
	lines := label.WrapText("соль "+long+" вода", 10, runeWidth)

	for _, line := range lines {
		assert.LessOrEqual(t, runeWidth(line), 10)
	}
	// No rune is lost anywhere in the split.
	joined := strings.Join(lines, "")
	assert.Equal(t, runeWidth("соль "+long+" вода")-1, runeWidth(joined),
		"only the flush-boundary space may disappear")
	assert.Contains(t, joined, "соль")
	assert.Contains(t, joined, "вода")
	assert.Equal(t, 25, strings.Count(joined, "о")-strings.Count("соль вода", "о"))
}

func TestWrapTextSingleOversizedRune(t *testing.T) {
	// A rune wider than the limit still terminates with one line per rune.
	wide := func(s string) int { return len([]rune(s)) * 100 }
	lines := label.WrapText("яд", 50, wide)
	assert.Equal(t, []string{"я", "д"}, lines)
}
