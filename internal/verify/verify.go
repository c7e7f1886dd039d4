// Package verify cross-checks the heuristic locator against a real C
// grammar. It exists for debugging the heuristic, never for the
// annotation path, and is compiled in only with the treesitter build
// tag so the default build stays free of cgo.
package verify

import "errors"

// ErrUnavailable is returned by Compare when the binary was built
// without grammar support.
var ErrUnavailable = errors.New("grammar verification not built in (rebuild with -tags treesitter)")

// Kind classifies one disagreement between the grammar and the
// heuristic.
type Kind int

const (
	// KindMissed is a grammar function definition the heuristic never
	// reported.
	KindMissed Kind = iota
	// KindPhantom is a heuristic span the grammar has no definition for.
	KindPhantom
	// KindBoundary is a definition both agree exists but border
	// differently.
	KindBoundary
)

func (k Kind) String() string {
	switch k {
	case KindMissed:
		return "missed"
	case KindPhantom:
		return "phantom"
	case KindBoundary:
		return "boundary"
	default:
		return "unknown"
	}
}

// Mismatch is one disagreement, located by the 1-based line of the
// definition in question.
type Mismatch struct {
	Kind   Kind
	Line   int
	Detail string
}
