package calc

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNumber Kind = iota
	KindText
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is the result of evaluating an expression or the content of a
// cell. The zero Value is the number 0, which is also what an empty cell
// evaluates to.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	List []Value
}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Text(s string) Value    { return Value{Kind: KindText, Str: s} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// IsFormula reports whether the value is text holding a formula.
func (v Value) IsFormula() bool {
	return v.Kind == KindText && strings.HasPrefix(v.Str, "=")
}

// Truthy follows the usual numeric and boolean truthiness: zero, empty
// text, false and the empty list are falsy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNumber:
		return v.Num != 0
	case KindText:
		return v.Str != ""
	case KindBool:
		return v.Bool
	case KindList:
		return len(v.List) > 0
	}
	return false
}

// String is the text coercion used by the text functions.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindText:
		return v.Str
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// FormatNumber renders a float in its shortest decimal form, so 1.0 prints
// as "1".
func FormatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num || (math.IsNaN(v.Num) && math.IsNaN(o.Num))
	case KindText:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts the value into plain Go values (float64, string, bool,
// []any), the shape used for JSON and YAML output.
func (v Value) Native() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindText:
		return v.Str
	case KindBool:
		return v.Bool
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Native()
		}
		return out
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindNumber && (math.IsInf(v.Num, 0) || math.IsNaN(v.Num)) {
		return json.Marshal(FormatNumber(v.Num))
	}
	return json.Marshal(v.Native())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts decoded JSON/YAML or plain Go data into a Value. nil
// becomes the empty-cell value 0.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Number(0), nil
	case Value:
		return t, nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	}
	return Value{}, fmt.Errorf("unsupported cell value of type %T", x)
}

// flatten expands nested lists depth-first, preserving left-to-right
// order.
func flatten(args []Value) []Value {
	out := make([]Value, 0, len(args))
	for _, a := range args {
		if a.Kind == KindList {
			out = append(out, flatten(a.List)...)
			continue
		}
		out = append(out, a)
	}
	return out
}

// ParseInput interprets text typed into a cell or read from a CSV file:
// formulas and plain text stay text, numbers and TRUE/FALSE are typed.
func ParseInput(text string) Value {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "=") {
		return Text(trimmed)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return Bool(true)
	case "FALSE":
		return Bool(false)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Number(f)
	}
	return Text(text)
}

// Input is the inverse of ParseInput, the text shown when editing a cell.
func (v Value) Input() string {
	if v.Kind == KindList {
		return ""
	}
	return v.String()
}
