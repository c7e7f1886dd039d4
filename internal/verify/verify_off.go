//go:build !treesitter || !cgo

package verify

import (
	"cdoc/internal/locator"
	"cdoc/internal/source"
)

// Available reports whether grammar-backed verification was built in.
func Available() bool { return false }

// Compare always fails in builds without the treesitter tag.
func Compare(src *source.Buffer, spans []locator.FunctionSpan) ([]Mismatch, error) {
	return nil, ErrUnavailable
}
