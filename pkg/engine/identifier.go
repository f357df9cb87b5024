package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// PackageKind is the resource kind used by package singletons.
const PackageKind = "package"

// ResourceIdentifier is the normalized (kind, title) pair naming a
// declarable unit in the output catalog.
type ResourceIdentifier struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// NewIdentifier lower-cases kind and title.
func NewIdentifier(kind, title string) ResourceIdentifier {
	return ResourceIdentifier{
		Kind:  strings.ToLower(strings.TrimPrefix(strings.TrimSpace(kind), "::")),
		Title: strings.ToLower(title),
	}
}

// PackageIdentifier returns the synthetic identifier a package singleton
// is declared under. The title is lower-cased like any other identifier, so
// it doubles as the guard and lookup key.
func PackageIdentifier(title string) ResourceIdentifier {
	return ResourceIdentifier{Kind: PackageKind, Title: PackageKeyPrefix + strings.ToLower(title)}
}

// String renders the identifier as Type['title'].
func (id ResourceIdentifier) String() string {
	return fmt.Sprintf("%s['%s']", CapitalizeKind(id.Kind), id.Title)
}

// CapitalizeKind capitalises every :: segment of a resource kind.
func CapitalizeKind(kind string) string {
	segments := strings.Split(kind, "::")
	for i, s := range segments {
		if s == "" {
			continue
		}
		segments[i] = strings.ToUpper(s[:1]) + s[1:]
	}
	return strings.Join(segments, "::")
}

var referencePattern = regexp.MustCompile(
	`^\s*((?:::)?[A-Za-z][A-Za-z0-9_]*(?:::[A-Za-z][A-Za-z0-9_]*)*)\s*\[\s*(?:'([^']*)'|"([^"]*)")\s*\]\s*$`,
)

// ParseReference parses the Type['title'] convention.
func ParseReference(s string) (ResourceIdentifier, error) {
	m := referencePattern.FindStringSubmatch(s)
	if m == nil {
		return ResourceIdentifier{}, NewInvalidReferenceError(s, nil)
	}
	title := m[2]
	if title == "" {
		title = m[3]
	}
	if strings.TrimSpace(title) == "" {
		return ResourceIdentifier{}, NewInvalidReferenceError(s, fmt.Errorf("empty title"))
	}
	return NewIdentifier(m[1], title), nil
}

// Argument is a singleton request item. It is either a RawReference or a
// TypedReference; no other implementations exist.
type Argument interface {
	Resolve() (ResourceIdentifier, error)
	String() string
	argument()
}

// RawReference is an unparsed Type['title'] string.
type RawReference string

// Resolve parses the reference.
func (r RawReference) Resolve() (ResourceIdentifier, error) {
	return ParseReference(string(r))
}

func (r RawReference) String() string { return string(r) }
func (RawReference) argument()        {}

// TypedReference is an already typed (kind, title) pair.
type TypedReference struct {
	Kind  string
	Title string
}

// Ref builds a TypedReference.
func Ref(kind, title string) TypedReference {
	return TypedReference{Kind: kind, Title: title}
}

// Resolve normalizes the reference. Empty kinds or titles are rejected.
func (t TypedReference) Resolve() (ResourceIdentifier, error) {
	if strings.TrimSpace(t.Kind) == "" || strings.TrimSpace(t.Title) == "" {
		return ResourceIdentifier{}, NewInvalidReferenceError(t.String(), fmt.Errorf("kind and title are required"))
	}
	return NewIdentifier(t.Kind, t.Title), nil
}

func (t TypedReference) String() string {
	return fmt.Sprintf("%s['%s']", CapitalizeKind(t.Kind), t.Title)
}

func (TypedReference) argument() {}

// ArgumentFrom converts a host value into an Argument.
func ArgumentFrom(v interface{}) (Argument, error) {
	switch val := v.(type) {
	case Argument:
		return val, nil
	case string:
		return RawReference(val), nil
	case ResourceIdentifier:
		return TypedReference{Kind: val.Kind, Title: val.Title}, nil
	case *ResourceIdentifier:
		if val == nil {
			return nil, NewUnsupportedArgumentError(v)
		}
		return TypedReference{Kind: val.Kind, Title: val.Title}, nil
	default:
		return nil, NewUnsupportedArgumentError(v)
	}
}

// flattenArguments flattens one level of list nesting.
func flattenArguments(args []interface{}) []interface{} {
	flat := make([]interface{}, 0, len(args))
	for _, a := range args {
		switch list := a.(type) {
		case []interface{}:
			flat = append(flat, list...)
		case []string:
			for _, s := range list {
				flat = append(flat, s)
			}
		case []Argument:
			for _, s := range list {
				flat = append(flat, s)
			}
		case []ResourceIdentifier:
			for _, s := range list {
				flat = append(flat, s)
			}
		default:
			flat = append(flat, a)
		}
	}
	return flat
}
