// Package locator finds top-level C function definitions by structure
// alone. It walks the lexical regions produced by the scanner, keeps a
// running candidate signature between statement boundaries, and judges
// the candidate whenever an opening brace appears outside parentheses
// at the top level. No C grammar is involved, so the result is a
// heuristic: good enough to hand function bodies to an annotator, not
// a parse.
package locator

import (
	"strings"

	"cdoc/internal/scanner"
	"cdoc/internal/source"
)

// FunctionSpan marks one located function definition. SignatureStart is
// the first byte of the signature, BodyStart the opening brace, BodyEnd
// one past the closing brace. DepthAtEntry is the absolute brace depth
// of the body's opening brace: zero at the top level, one inside an
// extern "C" or namespace group.
type FunctionSpan struct {
	SignatureStart int
	BodyStart      int
	BodyEnd        int
	DepthAtEntry   int
}

// Text returns the raw span bytes, signature through closing brace.
func (s FunctionSpan) Text(src *source.Buffer) string {
	return src.Text()[s.SignatureStart:s.BodyEnd]
}

// Skip records a candidate that had to be abandoned, with the offset of
// its signature and the reason.
type Skip struct {
	Offset int
	Reason string
}

// Result holds every located span in source order plus the candidates
// given up on. Spans never overlap and each satisfies
// SignatureStart <= BodyStart < BodyEnd.
type Result struct {
	Spans   []FunctionSpan
	Skipped []Skip
}

const (
	stTopLevel = iota // collecting a candidate signature
	stBody            // inside an accepted function body
	stOpaque          // inside a rejected block, skipped wholesale
)

type walker struct {
	text    string
	spans   []FunctionSpan
	skipped []Skip

	state       int
	absDepth    int // running brace depth across code regions
	parenDepth  int
	wrapperBase int // brace depth contributed by open wrapper blocks
	entryDepth  int // absDepth at the brace that opened stBody/stOpaque

	cand      strings.Builder
	candStart int
	sawString bool

	pending FunctionSpan
}

// Locate scans src and returns every top-level function definition it
// can identify. Functions inside extern "C" and namespace blocks are
// included; prototypes, aggregate definitions and initializer lists are
// not. A body still open at end of input is reported in Skipped rather
// than failing the whole file.
func Locate(src *source.Buffer) Result {
	w := &walker{text: src.Text(), candStart: -1}
	sc := scanner.New(w.text)
	for {
		r, ok := sc.Next()
		if !ok {
			break
		}
		switch r.Kind {
		case scanner.KindCode:
			w.code(r)
		case scanner.KindString:
			if w.state == stTopLevel {
				w.sawString = true
			}
		}
		// comments, char literals and preprocessor lines contribute
		// neither signature text nor depth
	}
	if w.state == stBody {
		w.skipped = append(w.skipped, Skip{
			Offset: w.pending.SignatureStart,
			Reason: "function body never closes before end of file",
		})
	}
	return Result{Spans: w.spans, Skipped: w.skipped}
}

func (w *walker) code(r scanner.Region) {
	for i := r.Start; i < r.End; i++ {
		switch w.state {
		case stTopLevel:
			w.topLevel(w.text[i], i)
		default:
			w.inBlock(w.text[i], i)
		}
	}
}

// topLevel handles one code byte while collecting a candidate. Braces
// inside parentheses (GNU statement expressions, compound literals)
// only move the depth counter; classification happens solely at braces
// opening on the current base level.
func (w *walker) topLevel(c byte, i int) {
	switch c {
	case '{':
		if w.parenDepth > 0 || w.absDepth > w.wrapperBase {
			w.absDepth++
			return
		}
		cl := Classify(w.cand.String(), w.sawString)
		switch cl.Verdict {
		case Accepted:
			w.pending = FunctionSpan{
				SignatureStart: w.candStart,
				BodyStart:      i,
				DepthAtEntry:   w.absDepth,
			}
			w.state = stBody
			w.entryDepth = w.absDepth
		case Wrapper:
			w.wrapperBase++
			w.resetCandidate()
		case Rejected:
			w.state = stOpaque
			w.entryDepth = w.absDepth
			w.resetCandidate()
		}
		w.absDepth++
	case '}':
		if w.absDepth > w.wrapperBase {
			w.absDepth--
		} else if w.wrapperBase > 0 {
			w.wrapperBase--
			w.absDepth--
		}
		if w.parenDepth == 0 && w.absDepth == w.wrapperBase {
			w.resetCandidate()
		}
	case ';':
		if w.parenDepth == 0 && w.absDepth == w.wrapperBase {
			w.resetCandidate()
			return
		}
		w.accumulate(c, i)
	case '(':
		w.parenDepth++
		w.accumulate(c, i)
	case ')':
		if w.parenDepth > 0 {
			w.parenDepth--
		}
		w.accumulate(c, i)
	default:
		w.accumulate(c, i)
	}
}

// inBlock tracks depth inside an accepted body or a rejected block and
// hands control back to the top level at the matching closing brace.
func (w *walker) inBlock(c byte, i int) {
	switch c {
	case '{':
		w.absDepth++
	case '}':
		w.absDepth--
		if w.absDepth == w.entryDepth {
			if w.state == stBody {
				w.pending.BodyEnd = i + 1
				w.spans = append(w.spans, w.pending)
			}
			w.state = stTopLevel
			w.resetCandidate()
		}
	}
}

func (w *walker) accumulate(c byte, i int) {
	if w.candStart < 0 && !isSpace(c) {
		w.candStart = i
	}
	w.cand.WriteByte(c)
}

func (w *walker) resetCandidate() {
	w.cand.Reset()
	w.candStart = -1
	w.sawString = false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}
