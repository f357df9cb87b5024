package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fixture struct {
	dir   string
	hiera string
	db    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"hiera.yaml": `version: 5
defaults:
  datadir: data
hierarchy:
  - name: "Common"
    path: "common.yaml"
`,
		"data/common.yaml": `
singleton_package_vim:
  parameters:
    ensure: latest
  include_singleton_packages:
    - ctags
singleton_resource_user:
  parameters:
    shell: /bin/bash
`,
		"site.star": `
singleton_packages("vim")
singleton_resources("User['deploy']", "broken")
`,
		"bad.star": `
singleton_packages("vim")
resource("package", "singleton_package_vim")
`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fixture{
		dir:   dir,
		hiera: filepath.Join(dir, "hiera.yaml"),
		db:    filepath.Join(dir, "state.db"),
	}
}

func run(t *testing.T, f fixture, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FROYO_STATE_DB", f.db)
	t.Setenv("FROYO_LOG_LEVEL", "error")

	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--hiera", f.hiera}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompileCommand_Text(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f, "compile", filepath.Join(f.dir, "site.star"))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	for _, want := range []string{
		"Classes: singleton",
		"Package['singleton_package_vim']",
		"ensure => 'latest'",
		"Package['singleton_package_ctags']",
		"User['deploy']",
		"shell => '/bin/bash'",
		`warning: singleton_resources("broken")`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCompileCommand_SaveAndHistory(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f, "compile", "--json", "--save", filepath.Join(f.dir, "site.star"))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	var result struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Catalog struct {
			Resources []struct {
				Kind  string `json:"kind"`
				Title string `json:"title"`
			} `json:"resources"`
		} `json:"catalog"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if result.Status != "success" || len(result.Catalog.Resources) != 3 {
		t.Errorf("unexpected result: %+v", result)
	}

	out, err = run(t, f, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, result.ID) || !strings.Contains(out, "success") {
		t.Errorf("history missing compilation:\n%s", out)
	}

	out, err = run(t, f, "show", result.ID, "--kind", "user")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "User['deploy']") || strings.Contains(out, "Package[") {
		t.Errorf("unexpected show output:\n%s", out)
	}
}

func TestCompileCommand_FatalError(t *testing.T) {
	f := newFixture(t)

	_, err := run(t, f, "compile", filepath.Join(f.dir, "bad.star"))
	if err == nil || !strings.Contains(err.Error(), "Duplicate declaration") {
		t.Errorf("expected duplicate declaration error, got %v", err)
	}
}

func TestDeclareCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f, "declare", "--packages", "vim", "--resources", "Group['admins']")
	if err != nil {
		t.Fatalf("declare failed: %v", err)
	}
	for _, want := range []string{"Package['singleton_package_vim']", "Package['singleton_package_ctags']", "Group['admins']"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, f, "declare"); err == nil {
		t.Error("expected error with nothing to declare")
	}
}

func TestLookupCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f, "lookup", "--json", "singleton_resource_user")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !strings.Contains(out, `"shell": "/bin/bash"`) {
		t.Errorf("unexpected lookup output:\n%s", out)
	}

	if _, err := run(t, f, "lookup", "missing_key"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestPoliciesCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f, "policies")
	if err != nil {
		t.Fatalf("policies failed: %v", err)
	}
	for _, want := range []string{"package_ensure", "resource_name", "package_name_conflict"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
