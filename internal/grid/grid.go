package grid

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// maxCol and maxRow keep references inside int32, so a range covers at
// most 2^62 cells and its size fits an int64.
const (
	maxCol = math.MaxInt32
	maxRow = math.MaxInt32
)

var refPattern = regexp.MustCompile(`^\$?([A-Za-z]+)\$?([0-9]+)$`)

// CellRef is a zero-based (column, row) pair.
type CellRef struct {
	Col int
	Row int
}

// String renders the reference in A1 notation without anchors.
func (c CellRef) String() string {
	return ColToName(c.Col) + strconv.Itoa(c.Row+1)
}

// RefError reports text that is not a valid A1 reference or range.
type RefError struct {
	Ref    string
	Reason string
}

func (e *RefError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid cell reference: %s", e.Ref)
	}
	return fmt.Sprintf("invalid cell reference %q: %s", e.Ref, e.Reason)
}

// ColToName: 0 -> A, 25 -> Z, 26 -> AA and so on. Columns outside
// 0..MaxInt32, which NameToCol cannot read back, give "?".
func ColToName(col int) string {
	if col < 0 || col > maxCol {
		return "?"
	}
	var buf [16]byte
	i := len(buf)
	n := col + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// NameToCol is the inverse of ColToName. Letters are case-insensitive.
func NameToCol(name string) (int, error) {
	if name == "" {
		return 0, &RefError{Ref: name, Reason: "empty column"}
	}
	col := 0
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if b < 'A' || b > 'Z' {
			return 0, &RefError{Ref: name, Reason: "column must be letters"}
		}
		col = col*26 + int(b-'A') + 1
		if col-1 > maxCol {
			return 0, &RefError{Ref: name, Reason: "column out of range"}
		}
	}
	return col - 1, nil
}

// Normalize strips $ anchors and surrounding space and uppercases, giving
// the key a cell is stored under.
func Normalize(ref string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
}

// ParseCellRef parses names like A1, $AA$10, b7.
func ParseCellRef(ref string) (CellRef, error) {
	m := refPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return CellRef{}, &RefError{Ref: ref}
	}
	col, err := NameToCol(m[1])
	if err != nil {
		return CellRef{}, &RefError{Ref: ref, Reason: "column out of range"}
	}
	rowNum, err := strconv.Atoi(m[2])
	if err != nil {
		return CellRef{}, &RefError{Ref: ref, Reason: "row out of range"}
	}
	if rowNum < 1 {
		return CellRef{}, &RefError{Ref: ref, Reason: "rows start at 1"}
	}
	if rowNum-1 > maxRow {
		return CellRef{}, &RefError{Ref: ref, Reason: "row out of range"}
	}
	return CellRef{Col: col, Row: rowNum - 1}, nil
}

// IsRange reports whether text looks like a range (contains ':').
func IsRange(text string) bool {
	return strings.Contains(text, ":")
}
