package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openfroyo/singletons/pkg/catalog"
)

// CompilationStatus is the outcome of a stored compilation.
type CompilationStatus string

const (
	CompilationStatusSuccess  CompilationStatus = "success"
	CompilationStatusFailed   CompilationStatus = "failed"
	CompilationStatusRejected CompilationStatus = "rejected"
)

// Compilation is one stored compilation pass.
type Compilation struct {
	ID            string            `json:"id"`
	Manifest      string            `json:"manifest"`
	Status        CompilationStatus `json:"status"`
	Environment   string            `json:"environment"`
	ResourceCount int               `json:"resource_count"`
	ClassCount    int               `json:"class_count"`
	Diagnostics   string            `json:"diagnostics"`      // JSON array
	Policy        *string           `json:"policy,omitempty"` // JSON blob
	Error         *string           `json:"error,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	CompiledAt    time.Time         `json:"compiled_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CatalogResource is a resource of a stored catalog.
type CatalogResource struct {
	CompilationID string `json:"compilation_id"`
	Position      int    `json:"position"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Source        string `json:"source"`
	Parameters    string `json:"parameters"` // JSON object
}

// CatalogClass is a class included by a stored catalog.
type CatalogClass struct {
	CompilationID string `json:"compilation_id"`
	Position      int    `json:"position"`
	Name          string `json:"name"`
}

// Snapshot is a compilation with its catalog contents.
type Snapshot struct {
	Compilation *Compilation
	Resources   []*CatalogResource
	Classes     []*CatalogClass
}

// NewSnapshot converts a catalog document into storable rows. The
// compilation's ID, counts and CompiledAt are taken from the document.
func NewSnapshot(c *Compilation, doc catalog.Document) (*Snapshot, error) {
	c.ID = doc.ID
	c.CompiledAt = doc.CreatedAt
	c.ResourceCount = len(doc.Resources)
	c.ClassCount = len(doc.Classes)
	if c.Diagnostics == "" {
		c.Diagnostics = "[]"
	}

	snap := &Snapshot{Compilation: c}
	for i, r := range doc.Resources {
		params, err := json.Marshal(r.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters of %s: %w", r.Ref(), err)
		}
		snap.Resources = append(snap.Resources, &CatalogResource{
			CompilationID: doc.ID,
			Position:      i,
			Kind:          r.Kind,
			Title:         r.Title,
			Source:        r.Source,
			Parameters:    string(params),
		})
	}
	for i, name := range doc.Classes {
		snap.Classes = append(snap.Classes, &CatalogClass{
			CompilationID: doc.ID,
			Position:      i,
			Name:          name,
		})
	}
	return snap, nil
}

// Document rebuilds the catalog document of a snapshot.
func (s *Snapshot) Document() (catalog.Document, error) {
	doc := catalog.Document{
		ID:        s.Compilation.ID,
		CreatedAt: s.Compilation.CompiledAt,
		Classes:   make([]string, 0, len(s.Classes)),
		Resources: make([]*catalog.Resource, 0, len(s.Resources)),
	}
	for _, c := range s.Classes {
		doc.Classes = append(doc.Classes, c.Name)
	}
	for _, r := range s.Resources {
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(r.Parameters), &params); err != nil {
			return doc, fmt.Errorf("failed to decode parameters of %s[%s]: %w", r.Kind, r.Title, err)
		}
		doc.Resources = append(doc.Resources, &catalog.Resource{
			Kind:       r.Kind,
			Title:      r.Title,
			Parameters: params,
			Source:     r.Source,
			Order:      r.Position,
		})
	}
	return doc, nil
}

// ListOptions filters ListCompilations.
type ListOptions struct {
	Status   *CompilationStatus
	Manifest *string
	Limit    int
	Offset   int
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Compilation operations
	SaveCompilation(ctx context.Context, snap *Snapshot) error
	GetCompilation(ctx context.Context, id string) (*Snapshot, error)
	ListCompilations(ctx context.Context, opts ListOptions) ([]*Compilation, error)
	ListResources(ctx context.Context, compilationID string, kind *string) ([]*CatalogResource, error)
	DeleteCompilation(ctx context.Context, id string) error
	PruneCompilations(ctx context.Context, keep int) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
