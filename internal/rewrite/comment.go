package rewrite

import "strings"

// DefaultWidth is the column the comment text wraps at when no width is
// configured, before the "// " prefix and any indentation.
const DefaultWidth = 80

// CommentBlock renders a description as a block of line comments, one
// "// " line per wrapped row, each prefixed with indent, ending in a
// newline so the line below it is untouched. Whitespace in desc,
// newlines included, is collapsed and the words reflowed at width
// columns (DefaultWidth when width is zero or negative). An empty or
// all-whitespace description yields an empty block.
func CommentBlock(desc, indent string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	words := strings.Fields(desc)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			writeCommentLine(&b, indent, line)
			line = w
			continue
		}
		line += " " + w
	}
	writeCommentLine(&b, indent, line)
	return b.String()
}

func writeCommentLine(b *strings.Builder, indent, line string) {
	b.WriteString(indent)
	b.WriteString("// ")
	b.WriteString(line)
	b.WriteByte('\n')
}
