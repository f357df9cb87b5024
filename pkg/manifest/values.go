package manifest

import (
	"fmt"

	"github.com/openfroyo/singletons/pkg/engine"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Ref is the Starlark value of a resource reference.
type Ref struct {
	kind  string
	title string
}

var (
	_ starlark.Value    = (*Ref)(nil)
	_ starlark.HasAttrs = (*Ref)(nil)
)

func newRef(kind, title string) *Ref {
	id := engine.NewIdentifier(kind, title)
	return &Ref{kind: id.Kind, title: title}
}

// Argument returns the engine argument for the reference.
func (r *Ref) Argument() engine.Argument { return engine.Ref(r.kind, r.title) }

func (r *Ref) String() string {
	return fmt.Sprintf("%s['%s']", engine.CapitalizeKind(r.kind), r.title)
}

func (r *Ref) Type() string          { return "ref" }
func (r *Ref) Freeze()               {}
func (r *Ref) Truth() starlark.Bool  { return starlark.True }
func (r *Ref) Hash() (uint32, error) { return starlark.String(r.String()).Hash() }

// Attr exposes kind and title.
func (r *Ref) Attr(name string) (starlark.Value, error) {
	switch name {
	case "kind":
		return starlark.String(r.kind), nil
	case "title":
		return starlark.String(r.title), nil
	}
	return nil, nil
}

func (r *Ref) AttrNames() []string { return []string{"kind", "title"} }

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[interface{}]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(fmt.Sprint(k)), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value. References
// become their Type['title'] string.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *Ref:
		return val.String(), nil
	case *starlark.List:
		return fromIterable(val, val.Len())
	case starlark.Tuple:
		return fromIterable(val, val.Len())
	case *starlark.Dict:
		dict := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromIterable(it starlark.Iterable, n int) ([]interface{}, error) {
	out := make([]interface{}, 0, n)
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		item, err := fromStarlarkValue(x)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
