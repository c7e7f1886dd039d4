package source

import (
	"fmt"
	"os"
	"sort"
)

// Buffer holds the full text of one input file. It is loaded once, addressed
// by zero-based byte offsets, and never mutated; every later stage works on
// slices of it.
type Buffer struct {
	path        string
	text        string
	lineOffsets []int // offset of the first byte of each line, ascending
}

// Load reads the file at path fully into memory. Function spans may need
// arbitrary lookahead, so there is no streaming mode.
func Load(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	return New(path, string(data)), nil
}

// New wraps already-loaded text in a Buffer. The name is used only for
// reporting.
func New(name, text string) *Buffer {
	b := &Buffer{path: name, text: text}
	b.lineOffsets = append(b.lineOffsets, 0)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			b.lineOffsets = append(b.lineOffsets, i+1)
		}
	}
	return b
}

// Path returns the name the buffer was loaded under.
func (b *Buffer) Path() string { return b.path }

// Text returns the complete source text.
func (b *Buffer) Text() string { return b.text }

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int { return len(b.text) }

// Position converts a byte offset into a 1-based line and column pair.
// Offsets past the end of the buffer report the final position.
func (b *Buffer) Position(off int) (line, col int) {
	if off < 0 {
		off = 0
	}
	if off > len(b.text) {
		off = len(b.text)
	}
	i := sort.Search(len(b.lineOffsets), func(i int) bool {
		return b.lineOffsets[i] > off
	}) - 1
	return i + 1, off - b.lineOffsets[i] + 1
}

// LineStart returns the offset of the first byte of the line containing off.
func (b *Buffer) LineStart(off int) int {
	if off < 0 {
		return 0
	}
	if off > len(b.text) {
		off = len(b.text)
	}
	i := sort.Search(len(b.lineOffsets), func(i int) bool {
		return b.lineOffsets[i] > off
	}) - 1
	return b.lineOffsets[i]
}

// Indent returns the leading whitespace of the line containing off, up to
// off itself. The rewriter uses it to align inserted comment blocks with the
// signature they describe.
func (b *Buffer) Indent(off int) string {
	start := b.LineStart(off)
	end := start
	for end < len(b.text) && end < off {
		c := b.text[end]
		if c != ' ' && c != '\t' {
			break
		}
		end++
	}
	return b.text[start:end]
}
