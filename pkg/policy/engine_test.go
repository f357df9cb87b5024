package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func declare(t *testing.T, cat *catalog.Catalog, kind, title string, params map[string]interface{}) {
	t.Helper()
	if err := cat.Declare(context.Background(), kind, title, params); err != nil {
		t.Fatalf("declare %s[%s]: %v", kind, title, err)
	}
}

func TestNewEngine_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	want := []string{PolicyPackageEnsure, PolicyPackageNameConflict, PolicyResourceName}
	if len(policies) != len(want) {
		t.Fatalf("expected %d policies, got %d", len(want), len(policies))
	}
	for i, name := range want {
		if policies[i].Name != name {
			t.Errorf("policies[%d] = %s, want %s", i, policies[i].Name, name)
		}
	}
}

func TestEvaluate_BuiltinPolicies(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T, cat *catalog.Catalog)
		wantAllowed    bool
		wantViolations map[string]int
	}{
		{
			name: "clean catalog",
			setup: func(t *testing.T, cat *catalog.Catalog) {
				declare(t, cat, "package", "singleton_package_vim", map[string]interface{}{"ensure": "present", "name": "vim"})
				declare(t, cat, "package", "singleton_package_git", map[string]interface{}{"ensure": "2.39.2-1", "name": "git"})
				declare(t, cat, "user", "fu", map[string]interface{}{"name": "fu"})
			},
			wantAllowed:    true,
			wantViolations: map[string]int{},
		},
		{
			name: "invalid ensure",
			setup: func(t *testing.T, cat *catalog.Catalog) {
				declare(t, cat, "package", "singleton_package_vim", map[string]interface{}{"ensure": "sometimes", "name": "vim"})
				declare(t, cat, "package", "singleton_package_git", map[string]interface{}{"ensure": int64(3), "name": "git"})
			},
			wantAllowed:    false,
			wantViolations: map[string]int{PolicyPackageEnsure: 2},
		},
		{
			name: "empty name",
			setup: func(t *testing.T, cat *catalog.Catalog) {
				declare(t, cat, "user", "fu", map[string]interface{}{"name": "  "})
			},
			wantAllowed:    false,
			wantViolations: map[string]int{PolicyResourceName: 1},
		},
		{
			name: "name conflict is a warning",
			setup: func(t *testing.T, cat *catalog.Catalog) {
				declare(t, cat, "package", "vim", map[string]interface{}{"ensure": "latest"})
				declare(t, cat, "package", "singleton_package_vim", map[string]interface{}{"ensure": "present", "name": "vim"})
			},
			wantAllowed:    true,
			wantViolations: map[string]int{PolicyPackageNameConflict: 1},
		},
	}

	eng := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := catalog.New()
			tt.setup(t, cat)

			result, err := eng.EvaluateCatalog(context.Background(), cat, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations: %+v)", result.Allowed, tt.wantAllowed, result.Violations)
			}

			got := map[string]int{}
			for _, v := range result.Violations {
				got[v.Policy]++
			}
			if len(got) != len(tt.wantViolations) {
				t.Errorf("violations = %v, want %v", got, tt.wantViolations)
			}
			for policy, n := range tt.wantViolations {
				if got[policy] != n {
					t.Errorf("%s violations = %d, want %d", policy, got[policy], n)
				}
			}
			if len(result.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", result.Warnings)
			}
		})
	}
}

func TestEvaluate_ViolationResource(t *testing.T) {
	eng := newTestEngine(t)
	cat := catalog.New()
	declare(t, cat, "package", "singleton_package_vim", map[string]interface{}{"ensure": "bogus"})

	result, err := eng.EvaluateCatalog(context.Background(), cat, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", result.Violations)
	}
	v := result.Violations[0]
	if v.Resource != "Package['singleton_package_vim']" || v.Severity != SeverityError {
		t.Errorf("unexpected violation: %+v", v)
	}
}

func TestEngine_DisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.DisablePolicy(PolicyPackageEnsure); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	cat := catalog.New()
	declare(t, cat, "package", "x", map[string]interface{}{"ensure": "bogus"})

	result, err := eng.EvaluateCatalog(context.Background(), cat, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed || len(result.EvaluatedPolicies) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestEngine_CustomPolicy(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.AddPolicy(context.Background(), Policy{
		Name:     "no_root_shell",
		Severity: SeverityCritical,
		Enabled:  true,
		Rego: `package site.no_root_shell

deny contains msg if {
	some r in input.catalog.resources
	r.kind == "user"
	r.parameters.shell == "/bin/sh"
	input.context.environment == "production"
	msg := sprintf("user %s uses /bin/sh", [r.title])
}
`,
	})
	if err != nil {
		t.Fatalf("AddPolicy failed: %v", err)
	}

	cat := catalog.New()
	declare(t, cat, "user", "deploy", map[string]interface{}{"shell": "/bin/sh"})

	staging, err := eng.EvaluateCatalog(context.Background(), cat, &PolicyContext{Environment: "staging"})
	if err != nil || !staging.Allowed {
		t.Fatalf("staging should pass: %+v %v", staging, err)
	}
	prod, err := eng.EvaluateCatalog(context.Background(), cat, &PolicyContext{Environment: "production"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prod.Allowed || len(prod.Violations) != 1 || prod.Violations[0].Message != "user deploy uses /bin/sh" {
		t.Errorf("unexpected production result: %+v", prod)
	}
}

func TestEngine_InvalidPolicy(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.AddPolicy(context.Background(), Policy{Name: "broken", Rego: "package broken\n\ndeny contains x if {"})
	if err == nil {
		t.Error("expected compile error")
	}
	if err := eng.AddPolicy(context.Background(), Policy{Rego: "package x"}); err == nil {
		t.Error("expected error for unnamed policy")
	}
}

func TestEngine_LoadPolicies(t *testing.T) {
	dir := t.TempDir()
	rego := `# Services must not be stopped in production.
# severity: error
package site.services

deny contains {"message": sprintf("%s is stopped", [r.title]), "resource": r.title} if {
	some r in input.catalog.resources
	r.kind == "service"
	r.parameters.ensure == "stopped"
}
`
	if err := os.WriteFile(filepath.Join(dir, "services.rego"), []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPolicy := `{
  // inline definition
  "name": "always",
  "severity": "info",
  "rego": "package site.always\n\ndeny contains \"note\" if { true }\n",
}`
	if err := os.WriteFile(filepath.Join(dir, "always.json"), []byte(jsonPolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	p, err := eng.GetPolicy("services")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p.Severity != SeverityError || p.Description != "Services must not be stopped in production." {
		t.Errorf("unexpected policy header: %+v", p)
	}
	if p, err := eng.GetPolicy("always"); err != nil || p.Severity != SeverityInfo || !p.Enabled {
		t.Errorf("unexpected JSON policy: %+v %v", p, err)
	}

	cat := catalog.New()
	declare(t, cat, "service", "nginx", map[string]interface{}{"ensure": "stopped"})
	result, err := eng.EvaluateCatalog(context.Background(), cat, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Error("expected stopped service to fail the check")
	}
	if len(result.Violations) != 2 {
		t.Errorf("expected 2 violations, got %+v", result.Violations)
	}

	if err := eng.LoadPolicies(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}
