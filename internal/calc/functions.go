package calc

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Function is a builtin. When Flatten is set the arguments are flattened
// before Apply sees them.
type Function struct {
	Name    string
	Flatten bool
	Apply   func(args []Value) (Value, error)
}

// builtins is built once at init and only read afterwards.
var builtins = map[string]Function{}

func register(name string, flat bool, apply func([]Value) (Value, error)) {
	builtins[name] = Function{Name: name, Flatten: flat, Apply: apply}
}

func init() {
	register("SUM", true, fnSum)
	register("AVERAGE", true, fnAverage)
	register("COUNT", true, fnCount)
	register("MAX", true, fnMax)
	register("MIN", true, fnMin)
	register("IF", false, fnIf)
	register("AND", false, fnAnd)
	register("OR", false, fnOr)
	register("NOT", false, fnNot)
	register("ABS", true, fnAbs)
	register("ROUND", true, fnRound)
	register("POWER", true, fnPower)
	register("CONCAT", true, fnConcat)
	register("LEFT", true, fnLeft)
	register("RIGHT", true, fnRight)
	register("LEN", true, fnLen)
	register("UPPER", true, fnUpper)
	register("LOWER", true, fnLower)
}

// Lookup finds a builtin by case-insensitive name.
func Lookup(name string) (Function, bool) {
	fn, ok := builtins[strings.ToUpper(name)]
	return fn, ok
}

// FunctionNames lists the builtin names in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func call(name string, args []Value) (Value, error) {
	fn, ok := Lookup(name)
	if !ok {
		return Value{}, newError(ErrUnknownFunction, "unknown function: %s", name)
	}
	if fn.Flatten {
		args = flatten(args)
	}
	return fn.Apply(args)
}

// numbers keeps only the numeric values.
func numbers(args []Value) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		if a.Kind == KindNumber {
			out = append(out, a.Num)
		}
	}
	return out
}

func arg(args []Value, i int, fn string) (Value, error) {
	if i >= len(args) {
		return Value{}, newError(ErrParse, "%s: missing argument %d", fn, i+1)
	}
	return args[i], nil
}

// toNumber coerces numbers, booleans and numeric text.
func toNumber(v Value, fn string) (float64, error) {
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case KindText:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return f, nil
		}
	}
	return 0, newError(ErrTypeCoercion, "%s: cannot use %s %q as a number", fn, v.Kind, v.String())
}

func numberArg(args []Value, i int, fn string) (float64, error) {
	v, err := arg(args, i, fn)
	if err != nil {
		return 0, err
	}
	return toNumber(v, fn)
}

// lengthArg reads an optional non-negative count, truncated like int().
func lengthArg(args []Value, i int, fn string) (int, error) {
	if i >= len(args) {
		return 1, nil
	}
	f, err := toNumber(args[i], fn)
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) {
		return 0, newError(ErrTypeCoercion, "%s: length must be non-negative", fn)
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(f), nil
}

func fnSum(args []Value) (Value, error) {
	sum := 0.0
	for _, n := range numbers(args) {
		sum += n
	}
	return Number(sum), nil
}

// fnAverage returns 0 for an empty numeric set instead of failing.
func fnAverage(args []Value) (Value, error) {
	nums := numbers(args)
	if len(nums) == 0 {
		return Number(0), nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return Number(sum / float64(len(nums))), nil
}

func fnCount(args []Value) (Value, error) {
	return Number(float64(len(numbers(args)))), nil
}

func fnMax(args []Value) (Value, error) {
	nums := numbers(args)
	if len(nums) == 0 {
		return Number(0), nil
	}
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Max(m, n)
	}
	return Number(m), nil
}

func fnMin(args []Value) (Value, error) {
	nums := numbers(args)
	if len(nums) == 0 {
		return Number(0), nil
	}
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Min(m, n)
	}
	return Number(m), nil
}

func fnIf(args []Value) (Value, error) {
	if len(args) < 2 {
		return Value{}, newError(ErrParse, "IF: needs a condition and a value, got %d argument(s)", len(args))
	}
	if args[0].Truthy() {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return Bool(false), nil
}

func fnAnd(args []Value) (Value, error) {
	for _, a := range args {
		if !a.Truthy() {
			return Bool(false), nil
		}
	}
	return Bool(true), nil
}

func fnOr(args []Value) (Value, error) {
	for _, a := range args {
		if a.Truthy() {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

func fnNot(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, newError(ErrParse, "NOT: needs exactly one argument, got %d", len(args))
	}
	return Bool(!args[0].Truthy()), nil
}

func fnAbs(args []Value) (Value, error) {
	n, err := numberArg(args, 0, "ABS")
	if err != nil {
		return Value{}, err
	}
	return Number(math.Abs(n)), nil
}

// fnRound rounds half to even, with decimals defaulting to 0. Negative
// decimals round to tens, hundreds and so on.
func fnRound(args []Value) (Value, error) {
	n, err := numberArg(args, 0, "ROUND")
	if err != nil {
		return Value{}, err
	}
	digits := 0.0
	if len(args) > 1 {
		if digits, err = toNumber(args[1], "ROUND"); err != nil {
			return Value{}, err
		}
	}
	digits = math.Trunc(digits)
	if digits < 0 {
		q := math.Pow(10, -digits)
		if math.IsInf(q, 0) {
			return Number(0), nil
		}
		return Number(math.RoundToEven(n/q) * q), nil
	}
	p := math.Pow(10, digits)
	if math.IsInf(p, 0) || math.IsInf(n*p, 0) {
		return Number(n), nil
	}
	return Number(math.RoundToEven(n*p) / p), nil
}

func fnPower(args []Value) (Value, error) {
	base, err := numberArg(args, 0, "POWER")
	if err != nil {
		return Value{}, err
	}
	exp, err := numberArg(args, 1, "POWER")
	if err != nil {
		return Value{}, err
	}
	return Number(math.Pow(base, exp)), nil
}

func fnConcat(args []Value) (Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.String())
	}
	return Text(b.String()), nil
}

func fnLeft(args []Value) (Value, error) {
	v, err := arg(args, 0, "LEFT")
	if err != nil {
		return Value{}, err
	}
	n, err := lengthArg(args, 1, "LEFT")
	if err != nil {
		return Value{}, err
	}
	r := []rune(v.String())
	return Text(string(r[:min(n, len(r))])), nil
}

func fnRight(args []Value) (Value, error) {
	v, err := arg(args, 0, "RIGHT")
	if err != nil {
		return Value{}, err
	}
	n, err := lengthArg(args, 1, "RIGHT")
	if err != nil {
		return Value{}, err
	}
	r := []rune(v.String())
	return Text(string(r[len(r)-min(n, len(r)):])), nil
}

func fnLen(args []Value) (Value, error) {
	v, err := arg(args, 0, "LEN")
	if err != nil {
		return Value{}, err
	}
	return Number(float64(utf8.RuneCountInString(v.String()))), nil
}

func fnUpper(args []Value) (Value, error) {
	v, err := arg(args, 0, "UPPER")
	if err != nil {
		return Value{}, err
	}
	return Text(strings.ToUpper(v.String())), nil
}

func fnLower(args []Value) (Value, error) {
	v, err := arg(args, 0, "LOWER")
	if err != nil {
		return Value{}, err
	}
	return Text(strings.ToLower(v.String())), nil
}
