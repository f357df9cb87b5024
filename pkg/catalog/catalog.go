// Package catalog holds the compiled resource graph of one compilation pass.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openfroyo/singletons/pkg/engine"
)

// Resource is a declared resource.
type Resource struct {
	// Kind is the lower-cased resource type (e.g., "package", "apt::source").
	Kind string `json:"kind"`

	// Title is the resource title as declared.
	Title string `json:"title"`

	// Parameters are the declared attribute values.
	Parameters map[string]interface{} `json:"parameters"`

	// Source names the declaration path (e.g., "singleton", "manifest").
	Source string `json:"source,omitempty"`

	// Order is the 0-based declaration order.
	Order int `json:"order"`
}

// Ref renders the resource as Type['title'].
func (r *Resource) Ref() string {
	return fmt.Sprintf("%s['%s']", engine.CapitalizeKind(r.Kind), r.Title)
}

// DuplicateDeclarationError is returned when a resource is declared twice.
type DuplicateDeclarationError struct {
	Ref            string
	ExistingSource string
}

func (e *DuplicateDeclarationError) Error() string {
	if e.ExistingSource != "" {
		return fmt.Sprintf("Duplicate declaration: %s is already declared (by %s); cannot redeclare", e.Ref, e.ExistingSource)
	}
	return fmt.Sprintf("Duplicate declaration: %s is already declared; cannot redeclare", e.Ref)
}

// UnknownClassError is returned by strict catalogs for unregistered classes.
type UnknownClassError struct {
	Name string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("Could not find class %s", e.Name)
}

// Catalog is the output catalog of one compilation pass. It implements
// engine.Catalog. Not safe for concurrent use.
type Catalog struct {
	id        string
	createdAt time.Time
	strict    bool
	registry  *ClassRegistry

	resources []*Resource
	index     map[string]*Resource

	classes  []string
	included map[string]struct{}
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithStrictClasses makes including an unregistered class an error.
func WithStrictClasses(strict bool) Option {
	return func(c *Catalog) { c.strict = strict }
}

// WithRegistry sets the class registry.
func WithRegistry(r *ClassRegistry) Option {
	return func(c *Catalog) { c.registry = r }
}

// WithID overrides the generated catalog ID.
func WithID(id string) Option {
	return func(c *Catalog) { c.id = id }
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		registry:  NewClassRegistry(),
		index:     make(map[string]*Resource),
		included:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the catalog ID.
func (c *Catalog) ID() string { return c.id }

// CreatedAt returns when the catalog was created.
func (c *Catalog) CreatedAt() time.Time { return c.createdAt }

// Registry returns the class registry.
func (c *Catalog) Registry() *ClassRegistry { return c.registry }

func resourceKey(kind, title string) string {
	return strings.ToLower(strings.TrimPrefix(kind, "::")) + "\x00" + strings.ToLower(title)
}

// NormalizeClassName lower-cases a class name and strips a leading "::".
func NormalizeClassName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "::"))
}

// ResourceExists reports whether kind/title was declared by any path.
func (c *Catalog) ResourceExists(kind, title string) bool {
	_, ok := c.index[resourceKey(kind, title)]
	return ok
}

// Resource returns the declared resource or nil.
func (c *Catalog) Resource(kind, title string) *Resource {
	return c.index[resourceKey(kind, title)]
}

// Declare adds a singleton-engine declaration.
func (c *Catalog) Declare(ctx context.Context, kind, title string, params map[string]interface{}) error {
	return c.DeclareFrom(ctx, "singleton", kind, title, params)
}

// DeclareFrom adds a resource recording which path declared it.
func (c *Catalog) DeclareFrom(_ context.Context, source, kind, title string, params map[string]interface{}) error {
	if strings.TrimSpace(kind) == "" || title == "" {
		return fmt.Errorf("resource kind and title are required")
	}
	key := resourceKey(kind, title)
	if existing, ok := c.index[key]; ok {
		return &DuplicateDeclarationError{Ref: existing.Ref(), ExistingSource: existing.Source}
	}

	copied := make(map[string]interface{}, len(params))
	for k, v := range params {
		copied[k] = v
	}
	r := &Resource{
		Kind:       strings.ToLower(strings.TrimPrefix(kind, "::")),
		Title:      title,
		Parameters: copied,
		Source:     source,
		Order:      len(c.resources),
	}
	c.resources = append(c.resources, r)
	c.index[key] = r
	return nil
}

// ClassIncluded reports whether the class was included.
func (c *Catalog) ClassIncluded(name string) bool {
	_, ok := c.included[NormalizeClassName(name)]
	return ok
}

// IncludeClass includes a class once and evaluates its registered body.
// The class is marked before its body runs, so a body including itself
// is a no-op.
func (c *Catalog) IncludeClass(ctx context.Context, name string) error {
	n := NormalizeClassName(name)
	if n == "" {
		return fmt.Errorf("class name is required")
	}
	if _, ok := c.included[n]; ok {
		return nil
	}

	body, registered := c.registry.Lookup(n)
	if !registered && c.strict {
		return &UnknownClassError{Name: n}
	}

	c.included[n] = struct{}{}
	c.classes = append(c.classes, n)

	if body != nil {
		if err := body(ctx); err != nil {
			return fmt.Errorf("evaluating class %s: %w", n, err)
		}
	}
	return nil
}

// Resources returns resources in declaration order.
func (c *Catalog) Resources() []*Resource {
	return append([]*Resource(nil), c.resources...)
}

// Classes returns included classes in inclusion order.
func (c *Catalog) Classes() []string {
	return append([]string(nil), c.classes...)
}

// Len returns the number of resources.
func (c *Catalog) Len() int {
	return len(c.resources)
}

// Kinds returns resource counts per kind.
func (c *Catalog) Kinds() map[string]int {
	counts := make(map[string]int)
	for _, r := range c.resources {
		counts[r.Kind]++
	}
	return counts
}

// Document is the serialized form of a catalog.
type Document struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Classes   []string    `json:"classes"`
	Resources []*Resource `json:"resources"`
}

// Document returns the serializable view of the catalog.
func (c *Catalog) Document() Document {
	return Document{
		ID:        c.id,
		CreatedAt: c.createdAt,
		Classes:   c.Classes(),
		Resources: c.Resources(),
	}
}

// MarshalJSON implements json.Marshaler.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Document())
}

// SortedParameterKeys returns parameter names in lexical order.
func (r *Resource) SortedParameterKeys() []string {
	keys := make([]string, 0, len(r.Parameters))
	for k := range r.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ engine.Catalog = (*Catalog)(nil)
