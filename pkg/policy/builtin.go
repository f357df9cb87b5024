package policy

// Built-in policy names.
const (
	PolicyPackageEnsure       = "package_ensure"
	PolicyResourceName        = "resource_name"
	PolicyPackageNameConflict = "package_name_conflict"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		packageEnsurePolicy(),
		resourceNamePolicy(),
		packageNameConflictPolicy(),
	}
}

// packageEnsurePolicy checks that package ensure values are recognised.
func packageEnsurePolicy() Policy {
	return Policy{
		Name:        PolicyPackageEnsure,
		Description: "Package ensure must be present, installed, absent, purged, latest, held or a version string",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"package"},
		Rego: `package singletons.policies.package_ensure

valid_ensure := {"present", "installed", "absent", "purged", "latest", "held"}

pkg_ref(r) := sprintf("Package['%s']", [r.title])

deny contains violation if {
	some r in input.catalog.resources
	r.kind == "package"
	ensure := r.parameters.ensure
	is_string(ensure)
	not valid_ensure[ensure]
	not regex.match("^[0-9][0-9A-Za-z.:~+_-]*$", ensure)
	violation := {
		"message": sprintf("%s has invalid ensure value '%s'", [pkg_ref(r), ensure]),
		"resource": pkg_ref(r),
	}
}

deny contains violation if {
	some r in input.catalog.resources
	r.kind == "package"
	ensure := r.parameters.ensure
	not is_string(ensure)
	violation := {
		"message": sprintf("%s ensure must be a string, got %v", [pkg_ref(r), ensure]),
		"resource": pkg_ref(r),
	}
}
`,
	}
}

// resourceNamePolicy checks that an explicit name parameter is not blank.
func resourceNamePolicy() Policy {
	return Policy{
		Name:        PolicyResourceName,
		Description: "Resource name parameters must not be empty",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming"},
		Rego: `package singletons.policies.resource_name

deny contains violation if {
	some r in input.catalog.resources
	name := r.parameters.name
	is_string(name)
	trim_space(name) == ""
	violation := {
		"message": sprintf("%s['%s'] has an empty name", [r.kind, r.title]),
		"resource": sprintf("%s['%s']", [r.kind, r.title]),
	}
}
`,
	}
}

// packageNameConflictPolicy warns when two package resources manage the
// same package name.
func packageNameConflictPolicy() Policy {
	return Policy{
		Name:        PolicyPackageNameConflict,
		Description: "Two package resources should not manage the same package name",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"package"},
		Rego: `package singletons.policies.package_name_conflict

pkg_name(r) := object.get(r.parameters, "name", r.title)

deny contains violation if {
	some i, j
	a := input.catalog.resources[i]
	b := input.catalog.resources[j]
	i < j
	a.kind == "package"
	b.kind == "package"
	pkg_name(a) == pkg_name(b)
	violation := {
		"message": sprintf("Package name '%v' is managed by both Package['%s'] and Package['%s']", [pkg_name(a), a.title, b.title]),
		"resource": sprintf("Package['%s']", [b.title]),
	}
}
`,
	}
}
