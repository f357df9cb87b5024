package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a compilation does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens a separate database.
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (s *SQLiteStore) dsn() string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_txlock=immediate"}
	if !isMemory(s.cfg.Path) {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	sep := "?"
	if strings.Contains(s.cfg.Path, "?") {
		sep = "&"
	}
	return s.cfg.Path + sep + strings.Join(pragmas, "&")
}

// Init opens the database connection and enables WAL mode for file
// databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// SaveCompilation stores a compilation with its catalog in one
// transaction.
func (s *SQLiteStore) SaveCompilation(ctx context.Context, snap *Snapshot) (err error) {
	c := snap.Compilation
	if c == nil || c.ID == "" {
		return fmt.Errorf("compilation id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compilations (
			id, manifest, status, environment, resource_count, class_count,
			diagnostics, policy, error, duration_ms, compiled_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Manifest,
		c.Status,
		c.Environment,
		c.ResourceCount,
		c.ClassCount,
		c.Diagnostics,
		c.Policy,
		c.Error,
		c.DurationMs,
		c.CompiledAt,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create compilation: %w", err)
	}

	for _, r := range snap.Resources {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_resources (compilation_id, position, kind, title, source, parameters)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, r.Position, r.Kind, r.Title, r.Source, r.Parameters)
		if err != nil {
			return fmt.Errorf("failed to store resource %s[%s]: %w", r.Kind, r.Title, err)
		}
	}

	for _, cl := range snap.Classes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_classes (compilation_id, position, name)
			VALUES (?, ?, ?)
		`, c.ID, cl.Position, cl.Name)
		if err != nil {
			return fmt.Errorf("failed to store class %s: %w", cl.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit compilation: %w", err)
	}
	return nil
}

const compilationColumns = `id, manifest, status, environment, resource_count, class_count,
	diagnostics, policy, error, duration_ms, compiled_at, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCompilation(row scanner) (*Compilation, error) {
	c := &Compilation{}
	err := row.Scan(
		&c.ID,
		&c.Manifest,
		&c.Status,
		&c.Environment,
		&c.ResourceCount,
		&c.ClassCount,
		&c.Diagnostics,
		&c.Policy,
		&c.Error,
		&c.DurationMs,
		&c.CompiledAt,
		&c.CreatedAt,
	)
	return c, err
}

// GetCompilation retrieves a compilation and its catalog by ID.
func (s *SQLiteStore) GetCompilation(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+compilationColumns+` FROM compilations WHERE id = ?`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compilation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compilation: %w", err)
	}

	resources, err := s.ListResources(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	classes, err := s.listClasses(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Compilation: c, Resources: resources, Classes: classes}, nil
}

// ListCompilations lists compilations, newest first.
func (s *SQLiteStore) ListCompilations(ctx context.Context, opts ListOptions) ([]*Compilation, error) {
	query := `SELECT ` + compilationColumns + ` FROM compilations WHERE 1=1`
	args := []interface{}{}

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, *opts.Status)
	}
	if opts.Manifest != nil {
		query += " AND manifest = ?"
		args = append(args, *opts.Manifest)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY compiled_at DESC, created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list compilations: %w", err)
	}
	defer rows.Close()

	compilations := []*Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compilation: %w", err)
		}
		compilations = append(compilations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compilations: %w", err)
	}

	return compilations, nil
}

// ListResources lists the resources of a compilation in declaration
// order, optionally restricted to one kind.
func (s *SQLiteStore) ListResources(ctx context.Context, compilationID string, kind *string) ([]*CatalogResource, error) {
	query := `
		SELECT compilation_id, position, kind, title, source, parameters
		FROM catalog_resources
		WHERE compilation_id = ?
	`
	args := []interface{}{compilationID}
	if kind != nil {
		query += " AND kind = ?"
		args = append(args, strings.ToLower(*kind))
	}
	query += " ORDER BY position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []*CatalogResource{}
	for rows.Next() {
		r := &CatalogResource{}
		if err := rows.Scan(&r.CompilationID, &r.Position, &r.Kind, &r.Title, &r.Source, &r.Parameters); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}

	return resources, nil
}

func (s *SQLiteStore) listClasses(ctx context.Context, compilationID string) ([]*CatalogClass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT compilation_id, position, name
		FROM catalog_classes
		WHERE compilation_id = ?
		ORDER BY position
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	classes := []*CatalogClass{}
	for rows.Next() {
		c := &CatalogClass{}
		if err := rows.Scan(&c.CompilationID, &c.Position, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classes: %w", err)
	}

	return classes, nil
}

// DeleteCompilation deletes a compilation and its catalog.
func (s *SQLiteStore) DeleteCompilation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete compilation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("compilation %s: %w", id, ErrNotFound)
	}

	return nil
}

// PruneCompilations keeps the newest keep compilations and deletes the
// rest, returning how many were deleted.
func (s *SQLiteStore) PruneCompilations(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM compilations
		WHERE id NOT IN (
			SELECT id FROM compilations
			ORDER BY compiled_at DESC, created_at DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune compilations: %w", err)
	}
	return result.RowsAffected()
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

var _ Store = (*SQLiteStore)(nil)
