package calc

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"sheetcalc/internal/grid"
)

// Limits bound a single evaluation. MaxDepth caps nested expressions and
// formula cells, MaxVisits caps the number of cells read (range cells
// included).
type Limits struct {
	MaxDepth  int `yaml:"max_depth"`
	MaxVisits int `yaml:"max_visits"`
}

// DefaultLimits are used when no limits are configured.
var DefaultLimits = Limits{MaxDepth: 256, MaxVisits: 100_000}

// Engine evaluates formulas. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	limits Limits
	log    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits overrides the default limits. Non-positive fields keep their
// default.
func WithLimits(l Limits) Option {
	return func(e *Engine) {
		if l.MaxDepth > 0 {
			e.limits.MaxDepth = l.MaxDepth
		}
		if l.MaxVisits > 0 {
			e.limits.MaxVisits = l.MaxVisits
		}
	}
}

// WithLogger makes the engine report failed evaluations at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{limits: DefaultLimits, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the limits in effect.
func (e *Engine) Limits() Limits { return e.limits }

var defaultEngine = New()

// Evaluate evaluates formula against ctx with the default engine.
func Evaluate(formula string, ctx Context) Result {
	return defaultEngine.Evaluate(formula, ctx)
}

// Result is either a Value or an Error, never both.
type Result struct {
	Value Value
	Err   *Error
}

func (r Result) OK() bool { return r.Err == nil }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string    `json:"error"`
			Kind  ErrorKind `json:"kind"`
		}{r.Err.Message, r.Err.Kind})
	}
	return json.Marshal(r.Value)
}

// Evaluate evaluates formula against ctx. Text that does not start with
// '=' is returned unchanged as a text value. Failures never escape as
// panics; they come back tagged in Result.Err.
func (e *Engine) Evaluate(formula string, ctx Context) Result {
	return e.EvaluateAt(formula, "", ctx)
}

// EvaluateAt evaluates formula as the content of cell at, so that a
// reference back to at is reported as circular. at may be empty.
func (e *Engine) EvaluateAt(formula, at string, ctx Context) Result {
	if !strings.HasPrefix(formula, "=") {
		return Result{Value: Text(formula)}
	}
	ev := e.newEvaluator(ctx)
	if at != "" {
		ev.path[grid.Normalize(at)] = true
	}
	return e.run(formula, func() (Value, error) {
		return ev.formula(formula)
	})
}

// EvaluateCell evaluates whatever is stored at ref: literals come back as
// they are, formulas are evaluated and empty cells give 0.
func (e *Engine) EvaluateCell(ref string, ctx Context) Result {
	ev := e.newEvaluator(ctx)
	return e.run(ref, func() (Value, error) {
		r, err := grid.ParseCellRef(ref)
		if err != nil {
			return Value{}, err
		}
		return ev.cell(r.String())
	})
}

func (e *Engine) newEvaluator(ctx Context) *evaluator {
	if ctx == nil {
		ctx = Cells(nil)
	}
	return &evaluator{limits: e.limits, ctx: ctx, path: map[string]bool{}}
}

func (e *Engine) run(input string, eval func() (Value, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: newError(ErrInternal, "internal error: %v", r)}
			e.log.Error().Str("input", input).Interface("panic", r).Msg("evaluation panicked")
		}
	}()
	v, err := eval()
	if err != nil {
		ce := asError(err)
		e.log.Debug().Str("input", input).Str("kind", string(ce.Kind)).Msg(ce.Message)
		return Result{Err: ce}
	}
	return Result{Value: v}
}
