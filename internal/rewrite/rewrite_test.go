package rewrite

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdoc/internal/locator"
	"cdoc/internal/source"
)

// stripInserted removes each inserted block from output at its shifted
// position, checking the block really is there, and returns what is
// left. With the round-trip guarantee that must be the original text.
func stripInserted(t *testing.T, output string, insertions []Insertion) string {
	t.Helper()
	ins := append([]Insertion(nil), insertions...)
	sort.Slice(ins, func(i, j int) bool { return ins[i].Offset < ins[j].Offset })

	var b strings.Builder
	prev, shift := 0, 0
	for _, in := range ins {
		pos := in.Offset + shift
		require.Equal(t, in.Text, output[pos:pos+len(in.Text)])
		b.WriteString(output[prev:pos])
		prev = pos + len(in.Text)
		shift += len(in.Text)
	}
	b.WriteString(output[prev:])
	return b.String()
}

func TestApply(t *testing.T) {
	out, err := Apply("abcdef", []Insertion{{Offset: 4, Text: "YY"}, {Offset: 2, Text: "X"}})
	require.NoError(t, err)
	assert.Equal(t, "abXcdYYef", out)
}

func TestApplyNoInsertions(t *testing.T) {
	out, err := Apply("abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestApplyDuplicateOffset(t *testing.T) {
	_, err := Apply("abc", []Insertion{{Offset: 2, Text: "A"}, {Offset: 2, Text: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate insertion offset 2")
}

func TestApplyOffsetOutOfRange(t *testing.T) {
	_, err := Apply("abc", []Insertion{{Offset: 7, Text: "A"}})
	assert.Error(t, err)
	_, err = Apply("abc", []Insertion{{Offset: -1, Text: "A"}})
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	text := "#include <stdio.h>\n\nstatic int add(int a, int b) {\n    return a + b;\n}\n\nint main(void) {\n    printf(\"%d\\n\", add(1, 2));\n    return 0;\n}\n"
	src := source.New("main.c", text)
	res := locator.Locate(src)
	require.Len(t, res.Spans, 2)

	var insertions []Insertion
	for i, span := range res.Spans {
		desc := strings.Repeat("word ", 30) + "function number " + string(rune('0'+i))
		insertions = append(insertions, ForSpan(src, span, desc, 0))
	}

	out, err := Apply(text, insertions)
	require.NoError(t, err)
	assert.Equal(t, text, stripInserted(t, out, insertions))
	assert.Contains(t, out, "// word")
}

func TestApplySameLineFunctionsIsFatal(t *testing.T) {
	// Two definitions on one line want the same insertion point. There
	// is no defined order for that, so the rewrite refuses.
	text := "int f(){} int g(){}"
	src := source.New("one_line.c", text)
	res := locator.Locate(src)
	require.Len(t, res.Spans, 2)

	var insertions []Insertion
	for _, span := range res.Spans {
		insertions = append(insertions, ForSpan(src, span, "one of two", 0))
	}
	_, err := Apply(text, insertions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate insertion offset")
}

func TestForSpanIndentation(t *testing.T) {
	text := "  int f(void) {\n    return;\n  }\n"
	src := source.New("indented.c", text)
	res := locator.Locate(src)
	require.Len(t, res.Spans, 1)

	in := ForSpan(src, res.Spans[0], "Does nothing, twice.", 0)
	assert.Equal(t, 0, in.Offset)
	assert.Equal(t, "  // Does nothing, twice.\n", in.Text)
}

func TestCommentBlock(t *testing.T) {
	t.Run("single line", func(t *testing.T) {
		assert.Equal(t, "// Adds two numbers.\n", CommentBlock("Adds two numbers.", "", 0))
	})

	t.Run("indent carried on every line", func(t *testing.T) {
		assert.Equal(t, "    // Returns x.\n", CommentBlock("Returns x.", "    ", 0))
	})

	t.Run("newlines collapse", func(t *testing.T) {
		assert.Equal(t, "// a b c\n", CommentBlock("a\nb\n\n c", "", 0))
	})

	t.Run("empty yields no block", func(t *testing.T) {
		assert.Equal(t, "", CommentBlock("   \n ", "", 0))
	})

	t.Run("wraps at eighty columns by default", func(t *testing.T) {
		desc := strings.TrimSpace(strings.Repeat("aaaaaaaaaa ", 9))
		got := CommentBlock(desc, "\t", 0)
		lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "\t// "+strings.TrimSpace(strings.Repeat("aaaaaaaaaa ", 7)), lines[0])
		assert.Equal(t, "\t// aaaaaaaaaa aaaaaaaaaa", lines[1])
	})

	t.Run("configured width wins", func(t *testing.T) {
		assert.Equal(t, "// aa bb\n// cc\n", CommentBlock("aa bb cc", "", 5))
	})

	t.Run("overlong word stays whole", func(t *testing.T) {
		long := strings.Repeat("x", 100)
		got := CommentBlock(long+" tail", "", 0)
		lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "// "+long, lines[0])
		assert.Equal(t, "// tail", lines[1])
	})
}
