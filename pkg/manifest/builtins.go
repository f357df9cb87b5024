package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/openfroyo/singletons/pkg/engine"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

// SourceManifest marks resources declared with resource().
const SourceManifest = "manifest"

type builtins struct {
	ctx         context.Context
	pass        Pass
	thread      *starlark.Thread
	logger      zerolog.Logger
	diagnostics []Diagnostic
}

// singletonPackages implements singleton_packages(*titles).
func (b *builtins) singletonPackages(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	titles, err := stringArgs(fn.Name(), args)
	if err != nil {
		return nil, err
	}

	res, err := b.pass.Engine.DeclarePackages(b.ctx, titles...)
	return b.report(engine.OperationSingletonPackages, res, err)
}

// singletonResources implements singleton_resources(*refs).
func (b *builtins) singletonResources(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
	}

	items := make([]interface{}, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case *starlark.List, starlark.Tuple:
			var list []interface{}
			iter := v.(starlark.Iterable).Iterate()
			var x starlark.Value
			for iter.Next(&x) {
				list = append(list, resourceArgument(x))
			}
			iter.Done()
			items = append(items, list)
		default:
			items = append(items, resourceArgument(arg))
		}
	}

	res, err := b.pass.Engine.DeclareResources(b.ctx, items...)
	return b.report(engine.OperationSingletonResources, res, err)
}

// resourceArgument converts a script value into an engine request item.
// Values the engine cannot use are passed through so it reports them per item.
func resourceArgument(v starlark.Value) interface{} {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case *Ref:
		return val.Argument()
	}
	if goVal, err := fromStarlarkValue(v); err == nil {
		return goVal
	}
	return v
}

// report records per-item errors and returns their messages to the script.
func (b *builtins) report(op string, res *engine.BatchResult, err error) (starlark.Value, error) {
	var msgs []starlark.Value
	if res != nil {
		for _, item := range res.Items {
			if item.Err == nil {
				continue
			}
			b.diagnostics = append(b.diagnostics, Diagnostic{
				Operation: op,
				Input:     item.Input,
				Code:      engine.ErrorCode(item.Err),
				Message:   item.Err.Error(),
			})
			msgs = append(msgs, starlark.String(item.Err.Error()))
		}
	}
	if err != nil {
		return nil, err
	}
	return starlark.NewList(msgs), nil
}

// resource implements resource(type, title, **params).
func (b *builtins) resource(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var kind, title string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, nil, 2, &kind, &title); err != nil {
		return nil, err
	}

	params := make(map[string]interface{}, len(kwargs))
	for _, kv := range kwargs {
		name := string(kv[0].(starlark.String))
		v, err := fromStarlarkValue(kv[1])
		if err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", fn.Name(), name, err)
		}
		params[name] = v
	}

	if err := b.pass.Catalog.DeclareFrom(b.ctx, SourceManifest, kind, title, params); err != nil {
		return nil, err
	}
	return newRef(kind, title), nil
}

// include implements include(*classes).
func (b *builtins) include(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	names, err := stringArgs(fn.Name(), args)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := b.pass.Catalog.IncludeClass(b.ctx, name); err != nil {
			return nil, err
		}
	}
	return starlark.None, nil
}

// ref implements ref(type, title).
func (b *builtins) ref(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var kind, title string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "type", &kind, "title", &title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(kind) == "" || title == "" {
		return nil, fmt.Errorf("%s: type and title are required", fn.Name())
	}
	return newRef(kind, title), nil
}

// defined implements defined(ref_or_class). References check the catalog;
// bare names check whether the class is known or already included.
func (b *builtins) defined(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &target); err != nil {
		return nil, err
	}

	switch v := target.(type) {
	case *Ref:
		return starlark.Bool(b.pass.Catalog.ResourceExists(v.kind, v.title)), nil
	case starlark.String:
		s := string(v)
		if strings.Contains(s, "[") {
			id, err := engine.ParseReference(s)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(b.pass.Catalog.ResourceExists(id.Kind, id.Title)), nil
		}
		_, registered := b.pass.Catalog.Registry().Lookup(s)
		return starlark.Bool(registered || b.pass.Catalog.ClassIncluded(s)), nil
	default:
		return nil, fmt.Errorf("%s: expected ref or string, got %s", fn.Name(), target.Type())
	}
}

// defineClass implements define_class(name, body).
func (b *builtins) defineClass(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var body starlark.Callable
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "body", &body); err != nil {
		return nil, err
	}

	err := b.pass.Catalog.Registry().Register(name, func(context.Context) error {
		_, err := starlark.Call(b.thread, body, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug().Str("class", catalog.NormalizeClassName(name)).Msg("Class defined")
	return starlark.None, nil
}

// lookup implements lookup(key, default=None).
func (b *builtins) lookup(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "key", &key, "default?", &def); err != nil {
		return nil, err
	}
	if b.pass.Backend == nil {
		return def, nil
	}

	v, found, err := b.pass.Backend.Lookup(b.ctx, key)
	if err != nil {
		return nil, engine.NewBackendError(key, err)
	}
	if !found {
		return def, nil
	}
	return toStarlarkValue(v)
}

// stringArgs flattens string arguments and one level of string lists.
func stringArgs(name string, args starlark.Tuple) ([]string, error) {
	var out []string
	for _, arg := range args {
		switch v := arg.(type) {
		case starlark.String:
			out = append(out, string(v))
		case *starlark.List, starlark.Tuple:
			iter := v.(starlark.Iterable).Iterate()
			var x starlark.Value
			for iter.Next(&x) {
				s, ok := x.(starlark.String)
				if !ok {
					iter.Done()
					return nil, fmt.Errorf("%s: expected string, got %s", name, x.Type())
				}
				out = append(out, string(s))
			}
			iter.Done()
		default:
			return nil, fmt.Errorf("%s: expected string, got %s", name, arg.Type())
		}
	}
	return out, nil
}
