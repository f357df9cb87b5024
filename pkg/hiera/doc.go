// Package hiera is a file-backed hierarchical configuration backend.
//
// A hierarchy is described by a hiera.yaml file (version 5 layout):
//
//	version: 5
//	defaults:
//	  datadir: data
//	  data_format: yaml
//	hierarchy:
//	  - name: "Per-node data"
//	    path: "nodes/%{facts.hostname}.yaml"
//	  - name: "Per-OS defaults"
//	    paths:
//	      - "os/%{facts.os.family}.yaml"
//	      - "os/common.json"
//	  - name: "Common data"
//	    path: "common.cue"
//
// Paths interpolate facts with %{facts.a.b}. A level whose path references a
// fact that is not set is skipped. Lookups walk the resolved files in order
// and return the value from the first file that defines the key.
//
// Data files may be YAML, JSON (comments and trailing commas allowed) or CUE.
// The format comes from the level's data_format, the defaults, or the file
// extension, in that order.
//
// Hierarchy implements engine.Backend. Parsed files are cached until
// Invalidate is called; Watch invalidates automatically on file changes.
package hiera
