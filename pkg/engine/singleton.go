package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Public operation names, used in error context and logs.
const (
	OperationSingletonPackages  = "singleton_packages"
	OperationSingletonResources = "singleton_resources"
)

// Engine declares singleton resources into a compilation's catalog.
// An Engine belongs to one compilation pass and is not safe for
// concurrent use.
type Engine struct {
	session  Session
	logger   zerolog.Logger
	observer Observer
	tracer   trace.Tracer
	maxDepth int
	depth    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "singleton-engine").Logger()
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithTracer sets the tracer used for declaration spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMaxDepth bounds chained inclusion depth. Zero means unbounded.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// NewEngine creates an engine over the session's collaborators.
func NewEngine(session Session, opts ...Option) (*Engine, error) {
	if session.Catalog == nil {
		return nil, fmt.Errorf("session catalog is required")
	}
	if session.Resolver == nil {
		return nil, fmt.Errorf("session resolver is required")
	}
	if session.Guard == nil {
		session.Guard = NewGuard()
	}

	e := &Engine{
		session:  session,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer("singleton-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	session.Resolver.observer = e.observer
	return e, nil
}

// Guard returns the session's dedup guard.
func (e *Engine) Guard() *Guard {
	return e.session.Guard
}

// DeclarePackages declares each title as a package singleton.
// Item errors are recorded in the result; the returned error is fatal.
func (e *Engine) DeclarePackages(ctx context.Context, titles ...string) (*BatchResult, error) {
	result := &BatchResult{}
	if err := e.declarePackages(ctx, titles, result); err != nil {
		return result, err
	}
	return result, nil
}

// DeclareResources declares each argument as a general resource singleton.
// Arguments are flattened one level; strings are parsed as Type['title'].
func (e *Engine) DeclareResources(ctx context.Context, args ...interface{}) (*BatchResult, error) {
	result := &BatchResult{}
	if err := e.declareResources(ctx, args, result); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) declarePackages(ctx context.Context, titles []string, result *BatchResult) error {
	for _, title := range titles {
		if err := e.declarePackage(ctx, title, result); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) declarePackage(ctx context.Context, title string, result *BatchResult) error {
	item := ItemResult{Flavor: FlavorPackage, Input: title, Depth: e.depth}

	if strings.TrimSpace(title) == "" {
		return e.itemFailed(item, NewInvalidReferenceError(title, fmt.Errorf("empty package title")).
			WithOperation(OperationSingletonPackages), result)
	}

	id := PackageIdentifier(title)
	key := id.Title
	item.ID = id

	if e.session.Guard.Seen(key) {
		return e.itemSkipped(item, result)
	}

	ctx, span := e.startSpan(ctx, FlavorPackage, id)
	defer span.End()

	if err := e.enter(id); err != nil {
		return spanError(span, err)
	}
	defer e.leave()

	if err := e.ensureBootstrap(ctx); err != nil {
		return spanError(span, err)
	}

	builtin := ConfigRecord{
		Parameters: map[string]interface{}{
			"ensure": "present",
			"name":   title,
		},
	}
	resolved, err := e.session.Resolver.ResolveInline(ctx, FlavorPackage, key, builtin)
	if err != nil {
		return spanError(span, withOperation(err, OperationSingletonPackages))
	}
	merged := MergeWithBuiltins(builtin, resolved)

	if err := e.declare(ctx, id, merged.Parameters); err != nil {
		return spanError(span, err)
	}
	e.session.Guard.Mark(key)

	item.Outcome = OutcomeDeclared
	item.Parameters = merged.Parameters
	e.record(item, result)

	if err := e.declarePackages(ctx, merged.IncludeSingletons, result); err != nil {
		return spanError(span, err)
	}
	return spanError(span, e.includeClasses(ctx, merged.IncludeClasses))
}

func (e *Engine) declareResources(ctx context.Context, args []interface{}, result *BatchResult) error {
	for _, raw := range flattenArguments(args) {
		if err := e.declareResource(ctx, raw, result); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) declareResource(ctx context.Context, raw interface{}, result *BatchResult) error {
	item := ItemResult{Flavor: FlavorResource, Input: fmt.Sprint(raw), Depth: e.depth}

	arg, err := ArgumentFrom(raw)
	if err != nil {
		return e.itemFailed(item, withOperation(err, OperationSingletonResources), result)
	}
	item.Input = arg.String()

	id, err := arg.Resolve()
	if err != nil {
		return e.itemFailed(item, withOperation(err, OperationSingletonResources), result)
	}
	item.ID = id

	if e.session.Catalog.ResourceExists(id.Kind, id.Title) {
		return e.itemSkipped(item, result)
	}

	ctx, span := e.startSpan(ctx, FlavorResource, id)
	defer span.End()

	if err := e.enter(id); err != nil {
		return spanError(span, err)
	}
	defer e.leave()

	if err := e.ensureBootstrap(ctx); err != nil {
		return spanError(span, err)
	}

	generic, specific, err := e.session.Resolver.ResolveTiered(ctx, id)
	if err != nil {
		return spanError(span, withOperation(err, OperationSingletonResources))
	}
	merged := Merge(generic, specific)
	params := ResourceParameters(id.Title, merged)

	if err := e.declare(ctx, id, params); err != nil {
		return spanError(span, err)
	}
	e.session.Guard.Mark(id.String())

	item.Outcome = OutcomeDeclared
	item.Parameters = params
	e.record(item, result)

	includes := make([]interface{}, len(merged.IncludeSingletons))
	for i, s := range merged.IncludeSingletons {
		includes[i] = s
	}
	if err := e.declareResources(ctx, includes, result); err != nil {
		return spanError(span, err)
	}
	return spanError(span, e.includeClasses(ctx, merged.IncludeClasses))
}

// ensureBootstrap includes the bootstrap class once per compilation.
func (e *Engine) ensureBootstrap(ctx context.Context) error {
	if e.session.Catalog.ClassIncluded(BootstrapClass) {
		return nil
	}
	e.logger.Debug().Str("class", BootstrapClass).Msg("Including bootstrap class")
	if err := e.session.Catalog.IncludeClass(ctx, BootstrapClass); err != nil {
		return classifyCatalogError(BootstrapClass, err)
	}
	return nil
}

func (e *Engine) declare(ctx context.Context, id ResourceIdentifier, params map[string]interface{}) error {
	if err := e.session.Catalog.Declare(ctx, id.Kind, id.Title, params); err != nil {
		return classifyCatalogError(id.String(), err)
	}
	e.logger.Debug().
		Str("resource", id.String()).
		Int("depth", e.depth).
		Int("parameters", len(params)).
		Msg("Declared singleton")
	return nil
}

func (e *Engine) includeClasses(ctx context.Context, classes []string) error {
	for _, name := range classes {
		if e.session.Catalog.ClassIncluded(name) {
			continue
		}
		e.logger.Debug().Str("class", name).Msg("Including chained class")
		if err := e.session.Catalog.IncludeClass(ctx, name); err != nil {
			return classifyCatalogError(name, err)
		}
	}
	return nil
}

// enter tracks recursion depth against the configured ceiling.
func (e *Engine) enter(id ResourceIdentifier) error {
	if e.maxDepth > 0 && e.depth >= e.maxDepth {
		return NewDepthExceededError(id.String(), e.maxDepth)
	}
	e.depth++
	return nil
}

func (e *Engine) leave() {
	e.depth--
}

func (e *Engine) itemFailed(item ItemResult, err error, result *BatchResult) error {
	item.Outcome = OutcomeFailed
	item.Err = err
	e.logger.Warn().Err(err).Str("input", item.Input).Str("flavor", string(item.Flavor)).Msg("Singleton request rejected")
	e.record(item, result)
	return nil
}

func (e *Engine) itemSkipped(item ItemResult, result *BatchResult) error {
	item.Outcome = OutcomeSkipped
	e.logger.Trace().Str("resource", item.ID.String()).Msg("Singleton already declared")
	e.record(item, result)
	return nil
}

func (e *Engine) record(item ItemResult, result *BatchResult) {
	result.add(item)
	e.observer.ObserveDeclaration(item)
}

func (e *Engine) startSpan(ctx context.Context, flavor Flavor, id ResourceIdentifier) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "singleton.declare", trace.WithAttributes(
		attribute.String("singleton.flavor", string(flavor)),
		attribute.String("resource.kind", id.Kind),
		attribute.String("resource.title", id.Title),
		attribute.Int("singleton.depth", e.depth),
	))
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// classifyCatalogError keeps classified errors from nested evaluation
// unchanged and marks everything else as a catalog failure.
func classifyCatalogError(resource string, err error) error {
	var ee *EngineError
	if asEngineError(err, &ee) {
		return err
	}
	return NewCatalogError(resource, err)
}

func withOperation(err error, op string) error {
	var ee *EngineError
	if asEngineError(err, &ee) && ee.Operation == "" {
		ee.Operation = op
	}
	return err
}
