package grid

import (
	"math"
	"strings"
)

// Range is an inclusive rectangular block of cells. Start is always the
// top-left corner and End the bottom-right one.
type Range struct {
	Start CellRef
	End   CellRef
}

// ParseRange parses "A1:B10". Inverted bounds such as "B2:A1" are
// normalized so the range covers the same block.
func ParseRange(text string) (Range, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return Range{}, &RefError{Ref: text, Reason: "range must have exactly one ':'"}
	}
	start, err := ParseCellRef(parts[0])
	if err != nil {
		return Range{}, err
	}
	end, err := ParseCellRef(parts[1])
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, end), nil
}

// NewRange builds a range from two corners in any order.
func NewRange(a, b CellRef) Range {
	return Range{
		Start: CellRef{Col: min(a.Col, b.Col), Row: min(a.Row, b.Row)},
		End:   CellRef{Col: max(a.Col, b.Col), Row: max(a.Row, b.Row)},
	}
}

func (r Range) String() string {
	return r.Start.String() + ":" + r.End.String()
}

// Width is the number of columns covered.
func (r Range) Width() int { return r.End.Col - r.Start.Col + 1 }

// Height is the number of rows covered.
func (r Range) Height() int { return r.End.Row - r.Start.Row + 1 }

// Size is the number of cells covered, saturating at math.MaxInt.
func (r Range) Size() int {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 || w > math.MaxInt/h {
		return math.MaxInt
	}
	return w * h
}

// Rows returns the references row by row.
func (r Range) Rows() [][]CellRef {
	rows := make([][]CellRef, 0, r.Height())
	for row := r.Start.Row; row <= r.End.Row; row++ {
		cols := make([]CellRef, 0, r.Width())
		for col := r.Start.Col; col <= r.End.Col; col++ {
			cols = append(cols, CellRef{Col: col, Row: row})
		}
		rows = append(rows, cols)
	}
	return rows
}

// Expand returns every reference in row-major order.
func (r Range) Expand() []CellRef {
	refs := make([]CellRef, 0, r.Size())
	for _, row := range r.Rows() {
		refs = append(refs, row...)
	}
	return refs
}
