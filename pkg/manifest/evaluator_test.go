package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/openfroyo/singletons/pkg/engine"
	"github.com/openfroyo/singletons/pkg/hiera"
	"github.com/rs/zerolog"
)

func newPass(t *testing.T, backend hiera.Static, facts map[string]interface{}) Pass {
	t.Helper()
	cat := catalog.New()
	eng, err := engine.NewEngine(engine.Session{
		Catalog:  cat,
		Resolver: engine.NewResolver(backend),
		Guard:    engine.NewGuard(),
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return Pass{Engine: eng, Catalog: cat, Backend: backend, Facts: facts}
}

func evaluate(t *testing.T, pass Pass, src string) (*Result, error) {
	t.Helper()
	ev := NewEvaluator(5*time.Second, zerolog.Nop())
	return ev.Evaluate(context.Background(), pass, "site.star", src)
}

func TestEvaluate_SingletonBuiltins(t *testing.T) {
	backend := hiera.Static{
		"singleton_package_vim": map[string]interface{}{
			"parameters":                 map[string]interface{}{"ensure": "latest"},
			"include_singleton_packages": []interface{}{"ctags"},
		},
	}
	pass := newPass(t, backend, nil)

	result, err := evaluate(t, pass, `
singleton_packages("vim", ["vim", "git"])
errs = singleton_resources("User['fu']", "notaref", ref("Group", "admins"), 42)
count = len(errs)
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Globals["count"] != int64(2) {
		t.Errorf("expected 2 item errors, got %v", result.Globals["count"])
	}
	if len(result.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", result.Diagnostics)
	}
	if result.Diagnostics[0].Code != "INVALID_RESOURCE_REFERENCE" || result.Diagnostics[0].Input != "notaref" {
		t.Errorf("unexpected first diagnostic: %+v", result.Diagnostics[0])
	}
	if result.Diagnostics[1].Code != "UNSUPPORTED_ARGUMENT_TYPE" {
		t.Errorf("unexpected second diagnostic: %+v", result.Diagnostics[1])
	}

	cat := pass.Catalog
	for _, ref := range [][2]string{
		{"package", "singleton_package_vim"},
		{"package", "singleton_package_ctags"},
		{"package", "singleton_package_git"},
		{"user", "fu"},
		{"group", "admins"},
	} {
		if !cat.ResourceExists(ref[0], ref[1]) {
			t.Errorf("expected %s[%s] in catalog", ref[0], ref[1])
		}
	}
	if cat.Len() != 5 {
		t.Errorf("expected 5 resources, got %d", cat.Len())
	}
	if vim := cat.Resource("package", "singleton_package_vim"); vim.Parameters["ensure"] != "latest" {
		t.Errorf("unexpected vim parameters: %v", vim.Parameters)
	}
	if !cat.ClassIncluded(engine.BootstrapClass) {
		t.Error("expected bootstrap class")
	}
}

func TestEvaluate_ResourceAndDefined(t *testing.T) {
	pass := newPass(t, hiera.Static{}, nil)

	result, err := evaluate(t, pass, `
r = resource("package", "vim", ensure = "latest", require = ref("File", "/etc/apt"))
singleton_resources(r)
singleton_packages("vim")
declared = defined("Package['vim']")
declared_ref = defined(ref("package", "VIM"))
missing = defined("Package['emacs']")
title = r.title
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, want := range map[string]interface{}{
		"declared":     true,
		"declared_ref": true,
		"missing":      false,
		"title":        "vim",
	} {
		if result.Globals[name] != want {
			t.Errorf("%s = %v, want %v", name, result.Globals[name], want)
		}
	}

	vim := pass.Catalog.Resource("package", "vim")
	if vim == nil || vim.Source != SourceManifest || vim.Parameters["require"] != "File['/etc/apt']" {
		t.Errorf("unexpected manifest resource: %+v", vim)
	}
	if len(result.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %+v", result.Diagnostics)
	}
}

func TestEvaluate_DuplicateResourceIsFatal(t *testing.T) {
	pass := newPass(t, hiera.Static{}, nil)

	_, err := evaluate(t, pass, `
singleton_resources("User['fu']")
resource("user", "fu")
`)
	var dup *catalog.DuplicateDeclarationError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate declaration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "site.star") {
		t.Errorf("expected backtrace in message, got %s", err)
	}
}

func TestEvaluate_ClassesFromConfiguration(t *testing.T) {
	backend := hiera.Static{
		"singleton_resource_user": map[string]interface{}{
			"include_classes": []interface{}{"accounts"},
		},
	}
	pass := newPass(t, backend, nil)

	result, err := evaluate(t, pass, `
calls = []

def accounts():
    calls.append(1)
    singleton_packages("sudo")

define_class("accounts", accounts)
singleton_resources("User['a']", "User['b']")
include("accounts")
known = defined("accounts")
ncalls = len(calls)
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Globals["ncalls"] != int64(1) {
		t.Errorf("expected class body to run once, got %v", result.Globals["ncalls"])
	}
	if result.Globals["known"] != true {
		t.Error("expected defined() to report the class")
	}
	if !pass.Catalog.ResourceExists("package", "singleton_package_sudo") {
		t.Error("expected class body declarations")
	}
}

func TestEvaluate_LookupAndFacts(t *testing.T) {
	backend := hiera.Static{"nginx_port": 8080}
	pass := newPass(t, backend, map[string]interface{}{
		"os": map[string]interface{}{"family": "Debian"},
	})

	result, err := evaluate(t, pass, `
port = lookup("nginx_port")
workers = lookup("nginx_workers", 4)
family = facts["os"]["family"]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Globals["port"] != int64(8080) || result.Globals["workers"] != int64(4) || result.Globals["family"] != "Debian" {
		t.Errorf("unexpected globals: %v", result.Globals)
	}
}

func TestEvaluate_FatalBackendError(t *testing.T) {
	pass := newPass(t, hiera.Static{
		"singleton_package_vim": "not a record",
	}, nil)

	_, err := evaluate(t, pass, `singleton_packages("vim")`)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if engine.IsItemError(err) {
		t.Errorf("malformed configuration must not be an item error: %v", err)
	}
}

func TestEvaluate_Timeout(t *testing.T) {
	pass := newPass(t, hiera.Static{}, nil)
	ev := NewEvaluator(50*time.Millisecond, zerolog.Nop())

	_, err := ev.Evaluate(context.Background(), pass, "loop.star", `
def spin():
    for i in range(1000000000):
        pass
spin()
`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEvaluate_BadArguments(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"package title not string", `singleton_packages(1)`},
		{"include not string", `include(["a", 2])`},
		{"ref missing title", `ref("Package", "")`},
		{"define_class not callable", `define_class("x", 1)`},
		{"syntax error", `singleton_packages(`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := newPass(t, hiera.Static{}, nil)
			if _, err := evaluate(t, pass, tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}
