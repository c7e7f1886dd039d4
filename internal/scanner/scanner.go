// Package scanner splits C source text into lexical regions: code,
// string and character literals, comments, and preprocessor lines.
// It tracks just enough state to tell those apart and never parses C.
package scanner

import "strings"

// Kind classifies a contiguous run of bytes in a C source file.
type Kind int

const (
	KindCode Kind = iota
	KindString
	KindChar
	KindLineComment
	KindBlockComment
	KindPreproc
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindString:
		return "string"
	case KindChar:
		return "char"
	case KindLineComment:
		return "line-comment"
	case KindBlockComment:
		return "block-comment"
	case KindPreproc:
		return "preproc"
	default:
		return "unknown"
	}
}

// Region is a maximal run of bytes sharing one lexical kind. Start is
// inclusive, End exclusive. BraceDepth is the running brace depth after
// the region ends; only braces inside Code regions move it, and it never
// goes below zero.
type Region struct {
	Kind       Kind
	Start      int
	End        int
	BraceDepth int
}

// Scanner walks C source text and yields its lexical regions in order.
// Regions tile the whole input with no gaps and no overlaps. A region
// left open at the end of the input (an unterminated comment, string,
// or character literal) is closed at EOF; that is not an error.
type Scanner struct {
	text string
	pos  int

	braceDepth int

	// atLineStart is true while only whitespace has been seen since the
	// last newline. A '#' starts a preprocessor line only in that state.
	atLineStart bool
}

func New(text string) *Scanner {
	return &Scanner{text: text, atLineStart: true}
}

// Next returns the next region and true, or a zero Region and false once
// the input is exhausted.
func (s *Scanner) Next() (Region, bool) {
	if s.pos >= len(s.text) {
		return Region{}, false
	}
	start := s.pos
	var kind Kind
	switch {
	case s.hasPrefix("//"):
		kind = KindLineComment
		s.scanLineComment()
	case s.hasPrefix("/*"):
		kind = KindBlockComment
		s.scanBlockComment()
	case s.text[s.pos] == '"':
		kind = KindString
		s.scanQuoted('"')
	case s.text[s.pos] == '\'':
		kind = KindChar
		s.scanQuoted('\'')
	case s.text[s.pos] == '#' && s.atLineStart:
		kind = KindPreproc
		s.scanPreproc()
	default:
		kind = KindCode
		s.scanCode()
	}
	return Region{Kind: kind, Start: start, End: s.pos, BraceDepth: s.braceDepth}, true
}

// Regions scans text to completion and returns every region in order.
func Regions(text string) []Region {
	sc := New(text)
	var regions []Region
	for {
		r, ok := sc.Next()
		if !ok {
			return regions
		}
		regions = append(regions, r)
	}
}

// bump consumes one byte and keeps the line-start flag current. Comment
// and literal bytes are not whitespace, so a '#' after them on the same
// line stays ordinary code.
func (s *Scanner) bump() byte {
	c := s.text[s.pos]
	s.pos++
	switch c {
	case '\n':
		s.atLineStart = true
	case ' ', '\t', '\r', '\v', '\f':
		// whitespace keeps the current line-start state
	default:
		s.atLineStart = false
	}
	return c
}

func (s *Scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.text[s.pos:], p)
}

// scanCode consumes code bytes until the start of another region kind.
// Braces are counted here and nowhere else.
func (s *Scanner) scanCode() {
	for s.pos < len(s.text) {
		switch s.text[s.pos] {
		case '/':
			if s.hasPrefix("//") || s.hasPrefix("/*") {
				return
			}
		case '"', '\'':
			return
		case '#':
			if s.atLineStart {
				return
			}
		case '{':
			s.braceDepth++
		case '}':
			if s.braceDepth > 0 {
				s.braceDepth--
			}
		}
		s.bump()
	}
}

// scanLineComment consumes "//" through the terminating newline, which
// belongs to the comment region.
func (s *Scanner) scanLineComment() {
	s.bump()
	s.bump()
	for s.pos < len(s.text) {
		if s.bump() == '\n' {
			return
		}
	}
}

// scanBlockComment consumes "/*" through the matching "*/".
func (s *Scanner) scanBlockComment() {
	s.bump()
	s.bump()
	for s.pos < len(s.text) {
		if s.hasPrefix("*/") {
			s.bump()
			s.bump()
			return
		}
		s.bump()
	}
}

// scanQuoted consumes a string or character literal. A backslash escapes
// the byte after it, so \" and \\ never terminate the literal.
func (s *Scanner) scanQuoted(quote byte) {
	s.bump()
	for s.pos < len(s.text) {
		c := s.bump()
		if c == '\\' {
			if s.pos < len(s.text) {
				s.bump()
			}
			continue
		}
		if c == quote {
			return
		}
	}
}

// scanPreproc consumes a preprocessor line through its terminating
// newline. A backslash immediately before the newline continues the
// directive onto the next line; \r\n line endings are accepted.
func (s *Scanner) scanPreproc() {
	s.bump()
	for s.pos < len(s.text) {
		c := s.bump()
		if c == '\\' {
			if s.pos < len(s.text) && s.text[s.pos] == '\n' {
				s.bump()
			} else if s.pos+1 < len(s.text) && s.text[s.pos] == '\r' && s.text[s.pos+1] == '\n' {
				s.bump()
				s.bump()
			}
			continue
		}
		if c == '\n' {
			return
		}
	}
}
