// Package policy checks compiled catalogs with Open Policy Agent.
//
// Each policy is a Rego module (v1 syntax) defining a "deny" set. The whole
// catalog is passed as input:
//
//	input.catalog.id
//	input.catalog.classes[_]
//	input.catalog.resources[_].kind / .title / .parameters / .source
//	input.context.environment / .facts / .compilation_id
//
// Members of deny are either strings or objects:
//
//	{"message": "...", "severity": "error", "resource": "Package['vim']"}
//
// A violation without a severity takes the policy's default. Any error or
// critical violation makes the result not Allowed.
//
// # Built-in Policies
//
//   - package_ensure: package ensure must be a known state or a version
//   - resource_name: an explicit name parameter must not be blank
//   - package_name_conflict: two packages managing one name (warning)
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	result, err := eng.EvaluateCatalog(ctx, cat, &policy.PolicyContext{Environment: "production"})
//	if !result.Allowed {
//	    // report result.Violations
//	}
package policy
