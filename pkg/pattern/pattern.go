// Package pattern implements structural matching of a value against a
// pattern value, producing symbol bindings (spec.md §4.3). It backs
// DefBind, `match`, and selective `recv`.
package pattern

import "github.com/kristofer/wisp/pkg/value"

// Wildcard is the sentinel symbol that matches anything without binding
// a name.
const Wildcard = "_"

// Match attempts to match pat against v. On success it returns the
// accumulated symbol -> value bindings and ok=true; on failure it
// returns ok=false and a nil map.
//
// Interpretation (spec.md §4.3):
//   - a symbol matches anything and binds that name to the value; "_"
//     matches but does not bind;
//   - a list matches lists of identical length, each element matched
//     recursively, bindings accumulating;
//   - any other variant matches only by structural equality.
func Match(pat, v value.Val) (map[string]value.Val, bool) {
	binds := make(map[string]value.Val)
	if !match(pat, v, binds) {
		return nil, false
	}
	return binds, true
}

func match(pat, v value.Val, binds map[string]value.Val) bool {
	switch pat.Kind {
	case value.KindSymbol:
		if pat.Str == Wildcard {
			return true
		}
		binds[pat.Str] = v
		return true
	case value.KindList:
		if v.Kind != value.KindList || len(v.List) != len(pat.List) {
			return false
		}
		for i := range pat.List {
			if !match(pat.List[i], v.List[i], binds) {
				return false
			}
		}
		return true
	default:
		return value.Equal(pat, v)
	}
}

// AnyPattern is the absent-pattern sentinel used by selective receive
// (`(recv)` with no argument): it matches anything and binds nothing.
var AnyPattern = value.Symbol(Wildcard)
