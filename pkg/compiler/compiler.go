package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/openfroyo/singletons/pkg/engine"
	"github.com/openfroyo/singletons/pkg/manifest"
	"github.com/openfroyo/singletons/pkg/policy"
	"github.com/openfroyo/singletons/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Compilation statuses recorded in metrics and the store.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
)

// Result is the outcome of one compilation pass.
type Result struct {
	ID          string                 `json:"id"`
	Manifest    string                 `json:"manifest"`
	Status      string                 `json:"status"`
	Catalog     *catalog.Catalog       `json:"catalog"`
	Diagnostics []manifest.Diagnostic  `json:"diagnostics,omitempty"`
	Policy      *policy.PolicyResult   `json:"policy,omitempty"`
	Globals     map[string]interface{} `json:"globals,omitempty"`
	Duration    time.Duration          `json:"duration"`
	Error       string                 `json:"error,omitempty"`
}

// PolicyRejectedError is returned when a blocking policy violation is found.
// The compiled catalog is still available on the Result.
type PolicyRejectedError struct {
	Result *policy.PolicyResult
}

func (e *PolicyRejectedError) Error() string {
	var blocking []string
	for _, v := range e.Result.Violations {
		if v.Severity.Blocking() {
			blocking = append(blocking, fmt.Sprintf("[%s] %s", v.Policy, v.Message))
		}
	}
	return fmt.Sprintf("catalog rejected by policy: %s", strings.Join(blocking, "; "))
}

// Call is an ad-hoc declaration compiled without a manifest.
type Call struct {
	Packages  []string
	Resources []string
}

// Compiler runs compilation passes against one configuration backend.
type Compiler struct {
	backend     engine.Backend
	facts       map[string]interface{}
	telemetry   *telemetry.Telemetry
	policies    *policy.Engine
	logger      zerolog.Logger
	strict      bool
	maxDepth    int
	timeout     time.Duration
	environment string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFacts sets the facts exposed to manifests and policies.
func WithFacts(facts map[string]interface{}) Option {
	return func(c *Compiler) { c.facts = facts }
}

// WithTelemetry sets the telemetry used for metrics, spans and events.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *Compiler) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithPolicies enables a policy check after each successful pass.
func WithPolicies(p *policy.Engine) Option {
	return func(c *Compiler) { c.policies = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithStrictClasses makes including an undefined class an error.
func WithStrictClasses(strict bool) Option {
	return func(c *Compiler) { c.strict = strict }
}

// WithMaxDepth bounds chained inclusion depth. Zero means unbounded.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) { c.maxDepth = n }
}

// WithTimeout bounds manifest evaluation.
func WithTimeout(d time.Duration) Option {
	return func(c *Compiler) { c.timeout = d }
}

// WithEnvironment names the environment passed to policies.
func WithEnvironment(env string) Option {
	return func(c *Compiler) { c.environment = env }
}

// New creates a compiler reading configuration from backend.
func New(backend engine.Backend, opts ...Option) (*Compiler, error) {
	if backend == nil {
		return nil, fmt.Errorf("configuration backend is required")
	}
	c := &Compiler{
		backend:   backend,
		telemetry: telemetry.Nop(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "compiler").Logger()
	return c, nil
}

// pass holds the per-compilation collaborators.
type pass struct {
	id      string
	catalog *catalog.Catalog
	engine  *engine.Engine
}

func (c *Compiler) newPass(id string) (*pass, error) {
	registry := catalog.NewClassRegistry()
	if c.strict {
		if err := registry.Register(engine.BootstrapClass, nil); err != nil {
			return nil, err
		}
	}
	cat := catalog.New(
		catalog.WithID(id),
		catalog.WithRegistry(registry),
		catalog.WithStrictClasses(c.strict),
	)

	eng, err := engine.NewEngine(
		engine.Session{
			Catalog:  cat,
			Resolver: engine.NewResolver(c.backend),
			Guard:    engine.NewGuard(),
		},
		engine.WithLogger(c.logger.With().Str("compilation_id", id).Logger()),
		engine.WithTracer(c.telemetry.Tracer.Tracer()),
		engine.WithMaxDepth(c.maxDepth),
		engine.WithObserver(&passObserver{
			compilationID: id,
			metrics:       c.telemetry.Metrics,
			events:        c.telemetry.Events,
		}),
	)
	if err != nil {
		return nil, err
	}
	return &pass{id: id, catalog: cat, engine: eng}, nil
}

// CompileFile compiles the manifest at path.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*Result, error) {
	return c.run(ctx, path, func(ctx context.Context, p *pass, result *Result) error {
		ev, err := c.evaluator().EvaluateFile(ctx, c.manifestPass(p), path)
		return collect(ev, err, result)
	})
}

// CompileManifest compiles manifest source. name labels it in
// backtraces and stored history.
func (c *Compiler) CompileManifest(ctx context.Context, name, src string) (*Result, error) {
	return c.run(ctx, name, func(ctx context.Context, p *pass, result *Result) error {
		ev, err := c.evaluator().Evaluate(ctx, c.manifestPass(p), name, src)
		return collect(ev, err, result)
	})
}

// CompileCall compiles an ad-hoc declaration: packages first, then
// resources, in one pass.
func (c *Compiler) CompileCall(ctx context.Context, call Call) (*Result, error) {
	return c.run(ctx, "<call>", func(ctx context.Context, p *pass, result *Result) error {
		if len(call.Packages) > 0 {
			batch, err := p.engine.DeclarePackages(ctx, call.Packages...)
			if err != nil {
				return err
			}
			result.Diagnostics = append(result.Diagnostics, diagnostics(engine.OperationSingletonPackages, batch)...)
		}
		if len(call.Resources) > 0 {
			args := make([]interface{}, len(call.Resources))
			for i, r := range call.Resources {
				args[i] = r
			}
			batch, err := p.engine.DeclareResources(ctx, args...)
			if err != nil {
				return err
			}
			result.Diagnostics = append(result.Diagnostics, diagnostics(engine.OperationSingletonResources, batch)...)
		}
		return nil
	})
}

func (c *Compiler) evaluator() *manifest.Evaluator {
	return manifest.NewEvaluator(c.timeout, c.logger)
}

func (c *Compiler) manifestPass(p *pass) manifest.Pass {
	return manifest.Pass{
		Engine:  p.engine,
		Catalog: p.catalog,
		Backend: c.backend,
		Facts:   c.facts,
	}
}

func collect(ev *manifest.Result, err error, result *Result) error {
	if ev != nil {
		result.Diagnostics = ev.Diagnostics
		result.Globals = ev.Globals
	}
	return err
}

func diagnostics(operation string, batch *engine.BatchResult) []manifest.Diagnostic {
	var out []manifest.Diagnostic
	for _, item := range batch.Items {
		if item.Err == nil {
			continue
		}
		out = append(out, manifest.Diagnostic{
			Operation: operation,
			Input:     item.Input,
			Code:      engine.ErrorCode(item.Err),
			Message:   item.Err.Error(),
		})
	}
	return out
}

func (c *Compiler) run(ctx context.Context, name string, body func(context.Context, *pass, *Result) error) (*Result, error) {
	id := uuid.NewString()
	timer := telemetry.NewTimer()
	logger := c.logger.With().Str("compilation_id", id).Str("manifest", name).Logger()

	ctx, span := c.telemetry.Tracer.StartCompileSpan(ctx, id, name)
	defer span.End()
	_ = c.telemetry.Events.PublishCompilationStarted(id, name)

	p, err := c.newPass(id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to start compilation: %w", err)
	}
	result := &Result{ID: id, Manifest: name, Catalog: p.catalog}

	finish := func(status string, err error) (*Result, error) {
		result.Status = status
		result.Duration = timer.Duration()
		c.telemetry.Metrics.RecordCompilation(status, result.Duration, p.catalog.Len())
		span.SetAttributes(telemetry.AttrResourceCount.Int(p.catalog.Len()))
		if err != nil {
			result.Error = err.Error()
			telemetry.RecordError(span, err)
			_ = c.telemetry.Events.PublishCompilationFailed(id, err.Error())
			logger.Error().Err(err).Str("status", status).Msg("Compilation failed")
			return result, err
		}
		telemetry.RecordSuccess(span)
		_ = c.telemetry.Events.PublishCompilationCompleted(id, p.catalog.Len(), result.Duration)
		logger.Info().
			Int("resources", p.catalog.Len()).
			Int("diagnostics", len(result.Diagnostics)).
			Dur("duration", result.Duration).
			Msg("Compilation completed")
		return result, nil
	}

	if err := body(ctx, p, result); err != nil {
		return finish(StatusFailed, err)
	}
	for _, d := range result.Diagnostics {
		logger.Warn().Str("operation", d.Operation).Str("input", d.Input).Str("code", d.Code).Msg(d.Message)
	}

	if c.policies != nil {
		pr, err := c.checkPolicies(ctx, p)
		if err != nil {
			return finish(StatusFailed, err)
		}
		result.Policy = pr
		if !pr.Allowed {
			return finish(StatusRejected, &PolicyRejectedError{Result: pr})
		}
	}
	return finish(StatusSuccess, nil)
}

func (c *Compiler) checkPolicies(ctx context.Context, p *pass) (*policy.PolicyResult, error) {
	ctx, span := c.telemetry.Tracer.StartSpan(ctx, telemetry.SpanPolicy)
	defer span.End()

	pr, err := c.policies.EvaluateCatalog(ctx, p.catalog, &policy.PolicyContext{
		CompilationID: p.id,
		Environment:   c.environment,
		Facts:         c.facts,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("policy check failed: %w", err)
	}

	span.SetAttributes(telemetry.AttrPolicyCount.Int(len(pr.EvaluatedPolicies)))
	for _, v := range pr.Violations {
		c.telemetry.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = c.telemetry.Events.PublishPolicyViolation(p.id, v.Resource, v.Policy, v.Message)
	}
	return pr, nil
}

// IsPolicyRejection reports whether err is a blocking policy result.
func IsPolicyRejection(err error) bool {
	var target *PolicyRejectedError
	return errors.As(err, &target)
}
