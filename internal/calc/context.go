package calc

import (
	"sort"

	"sheetcalc/internal/grid"
)

// Context supplies stored cell content by normalized reference ("A1").
// Implementations must be safe to read concurrently; the engine never
// writes to them.
type Context interface {
	Lookup(ref string) (Value, bool)
}

// Cells is a map-backed Context. Keys are expected to be normalized.
type Cells map[string]Value

func (c Cells) Lookup(ref string) (Value, bool) {
	v, ok := c[ref]
	return v, ok
}

// Refs returns the stored references ordered by row, then column.
// References that do not parse sort last, by name.
func (c Cells) Refs() []string {
	refs := make([]string, 0, len(c))
	for ref := range c {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		a, errA := grid.ParseCellRef(refs[i])
		b, errB := grid.ParseCellRef(refs[j])
		switch {
		case errA != nil && errB != nil:
			return refs[i] < refs[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		case a.Row != b.Row:
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return refs
}

// Native converts the snapshot to plain Go values.
func (c Cells) Native() map[string]any {
	out := make(map[string]any, len(c))
	for ref, v := range c {
		out[ref] = v.Native()
	}
	return out
}

// NewCells builds a normalized snapshot from decoded JSON/YAML data. Keys
// may carry $ anchors or lower case letters.
func NewCells(data map[string]any) (Cells, error) {
	cells := make(Cells, len(data))
	for ref, raw := range data {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, newError(ErrTypeCoercion, "cell %s: %v", ref, err)
		}
		cells[grid.Normalize(ref)] = v
	}
	return cells, nil
}

// Clone returns an independent copy, for callers that want to edit a
// snapshot they did not build.
func (c Cells) Clone() Cells {
	out := make(Cells, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
