// Package stores persists compilation history.
//
// The SQLite store keeps one row per compilation pass together with the
// resources and classes of its catalog, so past catalogs can be listed,
// shown and compared. Schema changes are applied with embedded migrations.
package stores
