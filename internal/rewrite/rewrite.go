// Package rewrite splices generated comment blocks into source text.
// Every inserted byte is new; the original bytes all survive in order,
// so removing the inserted blocks from the output reproduces the input
// exactly.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"cdoc/internal/locator"
	"cdoc/internal/source"
)

// Insertion is a block of new text to place at a byte offset of the
// original source. Offsets always refer to the original text, never to
// partially rewritten output.
type Insertion struct {
	Offset int
	Text   string
}

// ForSpan builds the insertion that puts desc, rendered as a comment
// block wrapped at width columns, directly above a function's signature
// line, indented to match it.
func ForSpan(src *source.Buffer, span locator.FunctionSpan, desc string, width int) Insertion {
	return Insertion{
		Offset: src.LineStart(span.SignatureStart),
		Text:   CommentBlock(desc, src.Indent(span.SignatureStart), width),
	}
}

// Apply splices the insertions into text. Insertions may arrive in any
// order; two insertions at the same offset have no defined order, so
// that is an error rather than a silent shuffle.
func Apply(text string, insertions []Insertion) (string, error) {
	ins := make([]Insertion, len(insertions))
	copy(ins, insertions)
	sort.Slice(ins, func(i, j int) bool { return ins[i].Offset < ins[j].Offset })

	var b strings.Builder
	prev := 0
	for i, in := range ins {
		if in.Offset < 0 || in.Offset > len(text) {
			return "", fmt.Errorf("insertion offset %d outside source of %d bytes", in.Offset, len(text))
		}
		if i > 0 && in.Offset == ins[i-1].Offset {
			return "", fmt.Errorf("duplicate insertion offset %d", in.Offset)
		}
		b.WriteString(text[prev:in.Offset])
		b.WriteString(in.Text)
		prev = in.Offset
	}
	b.WriteString(text[prev:])
	return b.String(), nil
}
