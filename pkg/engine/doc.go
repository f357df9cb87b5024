// Package engine implements at-most-once declaration of singleton resources
// during a catalog compilation pass.
//
// # Overview
//
// A singleton resource may be requested from many unrelated places in a
// manifest but must appear exactly once in the compiled catalog. Each request
// goes through the same pipeline:
//
//  1. Identify - normalize the request into a ResourceIdentifier
//  2. Guard - skip silently when the identifier is already declared
//  3. Bootstrap - include the "singleton" class once per compilation
//  4. Resolve - query the hierarchical configuration Backend
//  5. Merge - combine default and specific ConfigRecords
//  6. Declare - write the resource into the Catalog
//  7. Recurse - declare chained singletons, include chained classes
//
// # Entry Points
//
// Two operations are exposed on Engine:
//
//   - DeclarePackages: package titles, declared as Package['singleton_package_<title>']
//     with defaults {ensure: present, name: <title>} and a single lookup key
//     singleton_package_<title>.
//   - DeclareResources: Type['title'] strings or typed references, declared under
//     their own identifier with lookups singleton_resource_<kind> (generic) and
//     singleton_resource_<kind>_<title> (specific).
//
// # Configuration Records
//
// Backend data is normalized into a ConfigRecord with three always-present
// fields: parameters, chained singletons and chained classes. Keys may carry
// a leading ':' as written by older YAML data.
//
// # Error Classification
//
// Errors are classified so callers can decide what to abort:
//
//   - argument: a malformed item; recorded in BatchResult, siblings continue
//   - backend: configuration lookup failed; fatal
//   - catalog: the catalog rejected a write; fatal, diagnostic kept verbatim
//   - limit: the optional depth ceiling was exceeded; fatal
//
// # Example Usage
//
//	session := engine.Session{
//	    Catalog:  cat,
//	    Resolver: engine.NewResolver(backend),
//	    Guard:    engine.NewGuard(),
//	}
//	eng, err := engine.NewEngine(session, engine.WithLogger(logger))
//	result, err := eng.DeclarePackages(ctx, "vim", "emacs")
//	result, err = eng.DeclareResources(ctx, "User['fu']", engine.Ref("Package", "git"))
//
// # Thread Safety
//
// An Engine, its Guard and its Catalog belong to one compilation pass and are
// used from a single goroutine. Nothing in this package locks.
package engine
