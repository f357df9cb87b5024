// Package manifest evaluates Starlark manifests against a compilation pass.
//
// Manifests declare resources and include classes through builtins:
//
//	singleton_packages("vim", "git")
//	singleton_resources("User['deploy']", ref("Group", "deploy"))
//	resource("file", "/etc/motd", content = "hello")
//	include("base")
//	define_class("base", lambda: singleton_packages("curl"))
//	if defined("Package['nginx']"): ...
//	port = lookup("nginx_port", 80)
//
// singleton_packages and singleton_resources return the per-item error
// messages of their batch as a list, so a manifest can react to malformed
// items while the rest of the batch is still declared. Fatal errors stop
// evaluation.
//
// The facts of the pass are available as the predeclared dict "facts".
package manifest
