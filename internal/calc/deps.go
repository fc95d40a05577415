package calc

import (
	"strings"

	"github.com/xuri/efp"

	"sheetcalc/internal/grid"
)

// Dependencies lists the references and ranges a formula reads, normalized
// and in order of first appearance. Text without a leading '=' has none.
func Dependencies(formula string) ([]string, error) {
	if !strings.HasPrefix(formula, "=") {
		return nil, nil
	}
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	seen := map[string]bool{}
	var deps []string
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref, err := normalizeOperand(token.TValue)
		if err != nil {
			return nil, err
		}
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		deps = append(deps, ref)
	}
	return deps, nil
}

// Precedents expands Dependencies into single cells. limit caps the total
// number of cells; 0 means DefaultLimits.MaxVisits.
func Precedents(formula string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimits.MaxVisits
	}
	deps, err := Dependencies(formula)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var cells []string
	add := func(ref string) {
		if !seen[ref] {
			seen[ref] = true
			cells = append(cells, ref)
		}
	}
	for _, dep := range deps {
		if !grid.IsRange(dep) {
			add(dep)
			continue
		}
		rng, err := grid.ParseRange(dep)
		if err != nil {
			return nil, err
		}
		if rng.Size() > limit-len(cells) {
			return nil, newError(ErrRecursion, "range %s exceeds the limit of %d cells", dep, limit)
		}
		for _, ref := range rng.Expand() {
			add(ref.String())
		}
	}
	return cells, nil
}

// normalizeOperand turns a range operand into "A1" or "A1:B2" form.
// Names that are not cell references (booleans, bare words) give "".
func normalizeOperand(text string) (string, error) {
	text = strings.TrimSpace(text)
	if !looksLikeRef(text) {
		return "", nil
	}
	if grid.IsRange(text) {
		if strings.Count(text, ":") != 1 {
			return "", newError(ErrParse, "malformed range %q", text)
		}
		rng, err := grid.ParseRange(text)
		if err != nil {
			return "", asError(err)
		}
		return rng.String(), nil
	}
	ref, err := grid.ParseCellRef(text)
	if err != nil {
		return "", nil
	}
	return ref.String(), nil
}
