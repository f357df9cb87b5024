package engine

import (
	"context"
)

// BootstrapClass is the grouping construct included once per compilation
// before the first singleton is resolved.
const BootstrapClass = "singleton"

// Catalog is the output catalog of one compilation pass.
type Catalog interface {
	// ResourceExists reports whether kind/title was declared by any path.
	ResourceExists(kind, title string) bool

	// Declare adds a resource. Declaring an existing resource is an error
	// carrying the catalog's own diagnostic.
	Declare(ctx context.Context, kind, title string, params map[string]interface{}) error

	// ClassIncluded reports whether the class is already part of the catalog.
	ClassIncluded(name string) bool

	// IncludeClass includes a class and evaluates its body.
	IncludeClass(ctx context.Context, name string) error
}

// Observer receives engine activity for metrics and events.
type Observer interface {
	ObserveDeclaration(item ItemResult)
	ObserveLookup(tier, key string, found bool)
}

type nopObserver struct{}

func (nopObserver) ObserveDeclaration(ItemResult)      {}
func (nopObserver) ObserveLookup(string, string, bool) {}

// Session bundles the collaborators scoped to one compilation pass.
type Session struct {
	Catalog  Catalog
	Resolver *Resolver
	Guard    *Guard
}

// Outcome is the result of one request item.
type Outcome string

const (
	OutcomeDeclared Outcome = "declared"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// ItemResult describes what happened to one request item.
type ItemResult struct {
	// Flavor is the entry point semantics used.
	Flavor Flavor `json:"flavor"`

	// Input is the item as the caller supplied it.
	Input string `json:"input"`

	// ID is the resolved identifier; zero when the item failed to parse.
	ID ResourceIdentifier `json:"id"`

	// Outcome is declared, skipped or failed.
	Outcome Outcome `json:"outcome"`

	// Depth is 0 for caller items and grows with each chained inclusion.
	Depth int `json:"depth"`

	// Parameters are the final declared parameters.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Err is the per-item error for failed items.
	Err error `json:"-"`
}

// BatchResult collects item results in processing order, depth-first.
type BatchResult struct {
	Items []ItemResult `json:"items"`
}

func (b *BatchResult) add(item ItemResult) {
	b.Items = append(b.Items, item)
}

// Declared returns identifiers declared by the batch, in order.
func (b *BatchResult) Declared() []ResourceIdentifier {
	var ids []ResourceIdentifier
	for _, it := range b.Items {
		if it.Outcome == OutcomeDeclared {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Errors returns per-item errors, in order.
func (b *BatchResult) Errors() []error {
	var errs []error
	for _, it := range b.Items {
		if it.Err != nil {
			errs = append(errs, it.Err)
		}
	}
	return errs
}

// Count returns how many items had the given outcome.
func (b *BatchResult) Count(o Outcome) int {
	n := 0
	for _, it := range b.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}
