package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionsTile(t *testing.T) {
	sources := []string{
		"",
		"int x;\n",
		"#include <a.h>\n/* hdr */\nstatic int f(char *s) {\n  // body\n  return s[0] == '}' && \"{\"[0];\n}\n",
		"\"unterminated string swallows the rest {\nint f() {}\n",
		"#define PAIR(a, b) \\\n  { a, b }\nint x;\n",
		"/",
		"/* open",
	}

	for _, src := range sources {
		regions := Regions(src)
		if src == "" {
			assert.Empty(t, regions)
			continue
		}
		assert.NotEmpty(t, regions)
		assert.Equal(t, 0, regions[0].Start)
		prev := 0
		for _, r := range regions {
			assert.Equal(t, prev, r.Start, "regions must be contiguous in %q", src)
			assert.Greater(t, r.End, r.Start, "regions must be non-empty in %q", src)
			prev = r.End
		}
		assert.Equal(t, len(src), prev, "regions must cover all of %q", src)
	}
}

func TestLineComment(t *testing.T) {
	src := "int a; // note\nint b;\n"
	assert.Equal(t, []Region{
		{KindCode, 0, 7, 0},
		{KindLineComment, 7, 15, 0},
		{KindCode, 15, 22, 0},
	}, Regions(src))
}

func TestBlockComment(t *testing.T) {
	src := "int a;/* x\ny */int b;"
	assert.Equal(t, []Region{
		{KindCode, 0, 6, 0},
		{KindBlockComment, 6, 15, 0},
		{KindCode, 15, 21, 0},
	}, Regions(src))
}

func TestStringLiteral(t *testing.T) {
	t.Run("escaped quote and brace", func(t *testing.T) {
		src := "char *s = \"a\\\"b{\";"
		assert.Equal(t, []Region{
			{KindCode, 0, 10, 0},
			{KindString, 10, 17, 0},
			{KindCode, 17, 18, 0},
		}, Regions(src))
	})

	t.Run("escaped backslash terminates normally", func(t *testing.T) {
		src := "x = \"a\\\\\";"
		// "a\\" is four source bytes: quote a backslash backslash quote.
		assert.Equal(t, []Region{
			{KindCode, 0, 4, 0},
			{KindString, 4, 9, 0},
			{KindCode, 9, 10, 0},
		}, Regions(src))
	})
}

func TestCharLiteral(t *testing.T) {
	src := "char c = '}';"
	assert.Equal(t, []Region{
		{KindCode, 0, 9, 0},
		{KindChar, 9, 12, 0},
		{KindCode, 12, 13, 0},
	}, Regions(src))
}

func TestPreprocessor(t *testing.T) {
	t.Run("at line start", func(t *testing.T) {
		src := "#include <stdio.h>\nint x;\n"
		assert.Equal(t, []Region{
			{KindPreproc, 0, 19, 0},
			{KindCode, 19, 26, 0},
		}, Regions(src))
	})

	t.Run("indented hash still opens a directive", func(t *testing.T) {
		src := "\t #x\n"
		assert.Equal(t, []Region{
			{KindCode, 0, 2, 0},
			{KindPreproc, 2, 5, 0},
		}, Regions(src))
	})

	t.Run("backslash continuation keeps braces out of code", func(t *testing.T) {
		src := "#define PAIR(a, b) \\\n  { a, b }\nint x;\n"
		assert.Equal(t, []Region{
			{KindPreproc, 0, 32, 0},
			{KindCode, 32, 39, 0},
		}, Regions(src))
	})

	t.Run("crlf continuation", func(t *testing.T) {
		src := "#define A \\\r\nB\nint y;\n"
		assert.Equal(t, []Region{
			{KindPreproc, 0, 15, 0},
			{KindCode, 15, 22, 0},
		}, Regions(src))
	})

	t.Run("hash after code stays code", func(t *testing.T) {
		src := "int a; # here\n#eol\n"
		assert.Equal(t, []Region{
			{KindCode, 0, 14, 0},
			{KindPreproc, 14, 19, 0},
		}, Regions(src))
	})

	t.Run("hash after a comment stays code", func(t *testing.T) {
		// Comment bytes are not whitespace, so the hash is not the first
		// non-whitespace character of its line.
		src := "/*c*/ #x\n"
		assert.Equal(t, []Region{
			{KindBlockComment, 0, 5, 0},
			{KindCode, 5, 9, 0},
		}, Regions(src))
	})
}

func TestBraceDepth(t *testing.T) {
	t.Run("only code braces count", func(t *testing.T) {
		src := "void f(void) {\n  if (1) { g(\"{\"); }\n}\n"
		assert.Equal(t, []Region{
			{KindCode, 0, 28, 2},
			{KindString, 28, 31, 2},
			{KindCode, 31, 38, 0},
		}, Regions(src))
	})

	t.Run("stray closing brace clamps at zero", func(t *testing.T) {
		src := "} \"s\" {"
		assert.Equal(t, []Region{
			{KindCode, 0, 2, 0},
			{KindString, 2, 5, 0},
			{KindCode, 5, 7, 1},
		}, Regions(src))
	})
}

func TestUnterminatedRegionsCloseAtEOF(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind Kind
	}{
		{"block comment", "/* never ends", KindBlockComment},
		{"string", "\"open", KindString},
		{"char", "'x", KindChar},
		{"line comment", "// eof", KindLineComment},
		{"directive with trailing backslash", "#define X \\", KindPreproc},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, []Region{{tc.kind, 0, len(tc.src), 0}}, Regions(tc.src))
		})
	}
}
