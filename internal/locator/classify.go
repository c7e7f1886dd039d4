package locator

import "strings"

// Verdict is the outcome of judging one candidate signature.
type Verdict int

const (
	// Accepted means the brace that follows opens a function body.
	Accepted Verdict = iota
	// Wrapper means the brace opens a transparent block, an
	// extern "C" or namespace group, whose members are scanned as if
	// they sat at the top level.
	Wrapper
	// Rejected means the brace opens something that is not a function
	// body: an aggregate definition, an initializer list, or a block
	// with no signature text at all.
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Wrapper:
		return "wrapper"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Classification pairs a verdict with the reason for a rejection.
type Classification struct {
	Verdict Verdict
	Reason  string
}

// Classify judges the code text collected between the previous
// statement boundary and an opening brace. sawString reports whether a
// string literal appeared in that stretch, which is how extern "C"
// groups are told apart from extern declarations.
//
// The rules are deliberately loose: anything not recognizably a
// non-function is accepted, so unusual but valid definitions still get
// annotated at the cost of the odd false positive.
func Classify(candidate string, sawString bool) Classification {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return Classification{Verdict: Rejected, Reason: "no signature text"}
	}
	if strings.HasSuffix(text, "=") {
		return Classification{Verdict: Rejected, Reason: "initializer list"}
	}
	hasParen := strings.Contains(text, "(")
	switch first := firstWord(text); first {
	case "namespace":
		return Classification{Verdict: Wrapper}
	case "extern":
		if sawString && !hasParen {
			return Classification{Verdict: Wrapper}
		}
	case "struct", "union", "enum", "typedef":
		if !hasParen {
			return Classification{Verdict: Rejected, Reason: first + " definition"}
		}
	}
	return Classification{Verdict: Accepted}
}

func firstWord(s string) string {
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return s[:i]
		}
	}
	return s
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9'
}

// declKeywords are words that precede a parameter list without naming
// the function, so name extraction skips past them.
var declKeywords = map[string]bool{
	"void": true, "int": true, "char": true, "long": true, "short": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"const": true, "volatile": true, "register": true, "static": true,
	"inline": true, "extern": true, "struct": true, "union": true,
	"enum": true, "sizeof": true, "if": true, "while": true, "for": true,
	"switch": true, "return": true, "__attribute__": true,
}

// FuncName extracts the identifier a span's signature declares, for
// logs and the run report. Best effort: exotic declarators may come
// back empty.
func FuncName(text string, span FunctionSpan) string {
	sig := text[span.SignatureStart:span.BodyStart]
	for i := 0; i < len(sig); i++ {
		if sig[i] != '(' {
			continue
		}
		j := i
		for j > 0 && isSpace(sig[j-1]) {
			j--
		}
		k := j
		for k > 0 && isIdentByte(sig[k-1]) {
			k--
		}
		if word := sig[k:j]; word != "" && !declKeywords[word] {
			return word
		}
	}
	return ""
}
