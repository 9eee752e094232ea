package docproc

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is used when a non-positive limit is given.
const DefaultMaxChunkChars = 1000

// Chunk splits text into word-aligned pieces of at most maxChars characters.
// A single word longer than maxChars becomes its own chunk and is never split.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	for _, w := range strings.Fields(text) {
		wl := utf8.RuneCountInString(w)
		if curLen > 0 && curLen+1+wl > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wl
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
