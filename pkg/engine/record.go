package engine

import (
	"fmt"
	"strings"
)

// Hiera key prefixes.
const (
	PackageKeyPrefix  = "singleton_package_"
	ResourceKeyPrefix = "singleton_resource_"
)

// Record field names recognised in backend data.
const (
	FieldParameters                = "parameters"
	FieldIncludeSingletonPackages  = "include_singleton_packages"
	FieldIncludeSingletonResources = "include_singleton_resources"
	FieldIncludeClasses            = "include_classes"
)

// Flavor selects the package-only or the general resource semantics.
type Flavor string

const (
	FlavorPackage  Flavor = "package"
	FlavorResource Flavor = "resource"
)

// includeField returns the record field listing chained singletons.
func (f Flavor) includeField() string {
	if f == FlavorPackage {
		return FieldIncludeSingletonPackages
	}
	return FieldIncludeSingletonResources
}

// ConfigRecord is the total, normalized configuration of one singleton.
// All fields are always non-nil.
type ConfigRecord struct {
	Parameters        map[string]interface{} `json:"parameters"`
	IncludeSingletons []string               `json:"include_singletons"`
	IncludeClasses    []string               `json:"include_classes"`
}

// EmptyRecord returns a record with empty containers.
func EmptyRecord() ConfigRecord {
	return ConfigRecord{
		Parameters:        map[string]interface{}{},
		IncludeSingletons: []string{},
		IncludeClasses:    []string{},
	}
}

// Clone returns a shallow copy with fresh containers.
func (r ConfigRecord) Clone() ConfigRecord {
	out := EmptyRecord()
	for k, v := range r.Parameters {
		out.Parameters[k] = v
	}
	out.IncludeSingletons = append(out.IncludeSingletons, r.IncludeSingletons...)
	out.IncludeClasses = append(out.IncludeClasses, r.IncludeClasses...)
	return out
}

// NormalizeRecord converts raw backend data into a total ConfigRecord.
// Keys are accepted with or without a leading ':'; unknown keys are ignored.
func NormalizeRecord(raw interface{}, flavor Flavor) (ConfigRecord, error) {
	switch r := raw.(type) {
	case nil:
		return EmptyRecord(), nil
	case ConfigRecord:
		return r.Clone(), nil
	case *ConfigRecord:
		if r == nil {
			return EmptyRecord(), nil
		}
		return r.Clone(), nil
	}

	fields, err := toStringMap(raw)
	if err != nil {
		return ConfigRecord{}, fmt.Errorf("configuration record: %w", err)
	}

	rec := EmptyRecord()
	for k, v := range fields {
		switch symbolKey(k) {
		case FieldParameters:
			params, err := toStringMap(v)
			if err != nil {
				return ConfigRecord{}, fmt.Errorf("%s: %w", FieldParameters, err)
			}
			for pk, pv := range params {
				rec.Parameters[symbolKey(pk)] = pv
			}
		case flavor.includeField():
			list, err := toStringList(v)
			if err != nil {
				return ConfigRecord{}, fmt.Errorf("%s: %w", flavor.includeField(), err)
			}
			rec.IncludeSingletons = list
		case FieldIncludeClasses:
			list, err := toStringList(v)
			if err != nil {
				return ConfigRecord{}, fmt.Errorf("%s: %w", FieldIncludeClasses, err)
			}
			rec.IncludeClasses = list
		}
	}
	return rec, nil
}

// symbolKey strips the ':' prefix of symbol-style keys.
func symbolKey(k string) string {
	return strings.TrimPrefix(k, ":")
}

func toStringMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	case map[string]string:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}

func toStringList(v interface{}) ([]string, error) {
	switch l := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{l}, nil
	case []string:
		return append([]string{}, l...), nil
	case []interface{}:
		out := make([]string, 0, len(l))
		for i, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a sequence, got %T", v)
	}
}
