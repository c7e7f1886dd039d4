//go:build treesitter && cgo

package verify

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cdoc/internal/locator"
	"cdoc/internal/source"
)

// Available reports whether grammar-backed verification was built in.
func Available() bool { return true }

type grammarDef struct {
	start int
	end   int
}

// Compare parses src with the C grammar and lists every disagreement
// with the heuristic spans: definitions the heuristic missed, spans the
// grammar knows nothing about, and boundary drift on shared ones.
func Compare(src *source.Buffer, spans []locator.FunctionSpan) ([]Mismatch, error) {
	defs, err := grammarDefinitions([]byte(src.Text()))
	if err != nil {
		return nil, err
	}

	var out []Mismatch
	i, j := 0, 0
	for i < len(defs) && j < len(spans) {
		d, s := defs[i], spans[j]
		switch {
		case overlaps(d.start, d.end, s.SignatureStart, s.BodyEnd):
			if d.start != s.SignatureStart || d.end != s.BodyEnd {
				line, _ := src.Position(s.SignatureStart)
				out = append(out, Mismatch{
					Kind: KindBoundary,
					Line: line,
					Detail: fmt.Sprintf("grammar sees bytes %d-%d, heuristic sees %d-%d",
						d.start, d.end, s.SignatureStart, s.BodyEnd),
				})
			}
			i++
			j++
		case d.end <= s.SignatureStart:
			out = append(out, missed(src, d))
			i++
		default:
			out = append(out, phantom(src, s))
			j++
		}
	}
	for ; i < len(defs); i++ {
		out = append(out, missed(src, defs[i]))
	}
	for ; j < len(spans); j++ {
		out = append(out, phantom(src, spans[j]))
	}
	return out, nil
}

func grammarDefinitions(text []byte) ([]grammarDef, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse with the C grammar: %w", err)
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(`(function_definition) @def`), c.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var defs []grammarDef
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range m.Captures {
			defs = append(defs, grammarDef{
				start: int(capture.Node.StartByte()),
				end:   int(capture.Node.EndByte()),
			})
		}
	}
	sort.Slice(defs, func(a, b int) bool { return defs[a].start < defs[b].start })
	return defs, nil
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

func missed(src *source.Buffer, d grammarDef) Mismatch {
	line, _ := src.Position(d.start)
	return Mismatch{
		Kind:   KindMissed,
		Line:   line,
		Detail: fmt.Sprintf("grammar definition at bytes %d-%d has no heuristic span", d.start, d.end),
	}
}

func phantom(src *source.Buffer, s locator.FunctionSpan) Mismatch {
	line, _ := src.Position(s.SignatureStart)
	return Mismatch{
		Kind:   KindPhantom,
		Line:   line,
		Detail: fmt.Sprintf("heuristic span at bytes %d-%d has no grammar definition", s.SignatureStart, s.BodyEnd),
	}
}
