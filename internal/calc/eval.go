package calc

import (
	"strconv"
	"strings"

	"sheetcalc/internal/grid"
)

// evaluator carries the state of one top-level evaluation: the cells on
// the current formula path, the nesting depth and the number of cells
// read so far.
type evaluator struct {
	limits Limits
	ctx    Context
	path   map[string]bool
	depth  int
	visits int
}

func (ev *evaluator) formula(text string) (Value, error) {
	return ev.expr(strings.TrimPrefix(text, "="))
}

func (ev *evaluator) expr(text string) (Value, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.depth > ev.limits.MaxDepth {
		return Value{}, newError(ErrRecursion, "formula nests deeper than %d levels", ev.limits.MaxDepth)
	}

	text = strings.TrimSpace(text)
	if open := strings.IndexByte(text, '('); open >= 0 {
		return ev.call(text, open)
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return Bool(true), nil
	case "FALSE":
		return Bool(false), nil
	}
	if looksLikeRef(text) {
		if grid.IsRange(text) {
			return ev.rangeValues(text)
		}
		ref, err := grid.ParseCellRef(text)
		if err != nil {
			return Value{}, err
		}
		return ev.cell(ref.String())
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return Number(f), nil
	}
	return Text(text), nil
}

func (ev *evaluator) call(text string, open int) (Value, error) {
	name := strings.ToUpper(strings.TrimSpace(text[:open]))
	if name == "" {
		return Value{}, newError(ErrParse, "missing function name in %q", text)
	}
	end, ok := matchParen(text, open)
	if !ok {
		return Value{}, newError(ErrParse, "unmatched parenthesis in %q", text)
	}
	if rest := strings.TrimSpace(text[end+1:]); rest != "" {
		return Value{}, newError(ErrParse, "unexpected %q after %s(...)", rest, name)
	}
	if _, ok := Lookup(name); !ok {
		return Value{}, newError(ErrUnknownFunction, "unknown function: %s", name)
	}

	parts := SplitArgs(text[open+1 : end])
	args := make([]Value, 0, len(parts))
	for _, p := range parts {
		v, err := ev.expr(p)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	return call(name, args)
}

// rangeValues returns the range as a list of rows.
func (ev *evaluator) rangeValues(text string) (Value, error) {
	if strings.Count(text, ":") != 1 {
		return Value{}, newError(ErrParse, "malformed range %q", text)
	}
	rng, err := grid.ParseRange(text)
	if err != nil {
		return Value{}, err
	}
	if rng.Size() > ev.limits.MaxVisits-ev.visits {
		return Value{}, newError(ErrRecursion, "range %s exceeds the limit of %d cells per evaluation", rng, ev.limits.MaxVisits)
	}
	rows := make([]Value, 0, rng.Height())
	for _, refs := range rng.Rows() {
		row := make([]Value, 0, len(refs))
		for _, ref := range refs {
			v, err := ev.cell(ref.String())
			if err != nil {
				return Value{}, err
			}
			row = append(row, v)
		}
		rows = append(rows, List(row...))
	}
	return List(rows...), nil
}

// cell reads a normalized reference. Missing cells are 0; formula cells
// are evaluated against the same context.
func (ev *evaluator) cell(key string) (Value, error) {
	ev.visits++
	if ev.visits > ev.limits.MaxVisits {
		return Value{}, newError(ErrRecursion, "evaluation read more than %d cells", ev.limits.MaxVisits)
	}
	if ev.path[key] {
		return Value{}, newError(ErrRecursion, "circular reference through %s", key)
	}
	v, ok := ev.ctx.Lookup(key)
	if !ok {
		return Number(0), nil
	}
	if !v.IsFormula() {
		return v, nil
	}
	ev.path[key] = true
	defer delete(ev.path, key)
	return ev.formula(v.Str)
}

// looksLikeRef: letters, digits, ':' and '$' only, starting with a letter
// or '$'. Scientific literals such as 1e5 therefore stay numbers.
func looksLikeRef(text string) bool {
	if text == "" {
		return false
	}
	if c := text[0]; !isLetter(c) && c != '$' {
		return false
	}
	letter := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case isLetter(c):
			letter = true
		case isDigit(c), c == ':', c == '$':
		default:
			return false
		}
	}
	return letter
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
