package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/openfroyo/singletons/pkg/engine"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultTimeout bounds a manifest evaluation.
const DefaultTimeout = 30 * time.Second

// Pass is the compilation pass a manifest writes into.
type Pass struct {
	Engine  *engine.Engine
	Catalog *catalog.Catalog
	Backend engine.Backend
	Facts   map[string]interface{}
}

// Diagnostic is a per-item error reported while evaluating a manifest.
type Diagnostic struct {
	Operation string `json:"operation"`
	Input     string `json:"input"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

// Result is the outcome of an evaluation.
type Result struct {
	Diagnostics   []Diagnostic           `json:"diagnostics,omitempty"`
	Globals       map[string]interface{} `json:"globals,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
}

// Evaluator executes manifests.
type Evaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewEvaluator creates an evaluator. A zero timeout uses DefaultTimeout.
func NewEvaluator(timeout time.Duration, logger zerolog.Logger) *Evaluator {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "manifest").Logger(),
	}
}

// EvaluateFile reads and evaluates a manifest file.
func (ev *Evaluator) EvaluateFile(ctx context.Context, pass Pass, path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ev.Evaluate(ctx, pass, path, string(src))
}

// Evaluate runs a manifest. Evaluation runs on the calling goroutine and
// is cancelled when ctx is done or the timeout elapses.
func (ev *Evaluator) Evaluate(ctx context.Context, pass Pass, filename, src string) (*Result, error) {
	if pass.Engine == nil || pass.Catalog == nil {
		return nil, fmt.Errorf("manifest pass requires an engine and a catalog")
	}
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, ev.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			ev.logger.Info().Str("manifest", filename).Msg(msg)
		},
	}
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(evalCtx.Err().Error())
	})
	defer stop()

	b := &builtins{ctx: evalCtx, pass: pass, thread: thread, logger: ev.logger}
	predeclared, err := b.predeclared()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	result.Diagnostics = b.diagnostics
	result.ExecutionTime = time.Since(startTime)
	if err != nil {
		if ctxErr := evalCtx.Err(); ctxErr != nil {
			return result, fmt.Errorf("manifest evaluation cancelled: %w", ctxErr)
		}
		return result, unwrapEvalError(err)
	}

	result.Globals = make(map[string]interface{})
	for name, val := range globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			// Functions and other non-data globals are not exported.
			continue
		}
		result.Globals[name] = goVal
	}

	ev.logger.Debug().
		Str("manifest", filename).
		Int("diagnostics", len(result.Diagnostics)).
		Dur("duration", result.ExecutionTime).
		Msg("Manifest evaluated")

	return result, nil
}

// ScriptError is a manifest runtime failure. It renders the Starlark
// backtrace and unwraps to the error raised by the failing builtin.
type ScriptError struct {
	Backtrace string
	Err       error
}

func (e *ScriptError) Error() string { return e.Backtrace }
func (e *ScriptError) Unwrap() error { return e.Err }

func unwrapEvalError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &ScriptError{Backtrace: evalErr.Backtrace(), Err: evalErr.Unwrap()}
	}
	return err
}

func (b *builtins) predeclared() (starlark.StringDict, error) {
	facts, err := toStarlarkValue(b.pass.Facts)
	if err != nil {
		return nil, fmt.Errorf("failed to convert facts: %w", err)
	}

	return starlark.StringDict{
		"struct":              starlarkstruct.Default,
		"facts":               facts,
		"singleton_packages":  starlark.NewBuiltin("singleton_packages", b.singletonPackages),
		"singleton_resources": starlark.NewBuiltin("singleton_resources", b.singletonResources),
		"resource":            starlark.NewBuiltin("resource", b.resource),
		"include":             starlark.NewBuiltin("include", b.include),
		"ref":                 starlark.NewBuiltin("ref", b.ref),
		"defined":             starlark.NewBuiltin("defined", b.defined),
		"define_class":        starlark.NewBuiltin("define_class", b.defineClass),
		"lookup":              starlark.NewBuiltin("lookup", b.lookup),
	}, nil
}
