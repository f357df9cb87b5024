// Package config loads the settings of the singletons CLI.
//
// Settings come from three layers, later layers winning:
//
//  1. Defaults declared in the CUE schema
//  2. An optional settings file (CUE or JSON), validated against the schema
//  3. FROYO_* environment variables
//
// A settings file looks like:
//
//	hiera_config: "hiera.yaml"
//	environment:  "staging"
//	max_depth:    32
//	policy_paths: ["policies"]
//	logging: level: "debug"
//
// Unknown fields are rejected. Errors carry file positions.
package config
