package engine

import (
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ResourceIdentifier
		wantErr bool
	}{
		{name: "single quotes", input: "Package['vim']", want: ResourceIdentifier{Kind: "package", Title: "vim"}},
		{name: "double quotes", input: `User["Fu"]`, want: ResourceIdentifier{Kind: "user", Title: "fu"}},
		{name: "namespaced type", input: "Apt::Source['Backports']", want: ResourceIdentifier{Kind: "apt::source", Title: "backports"}},
		{name: "surrounding whitespace", input: "  File[ '/etc/motd' ]  ", want: ResourceIdentifier{Kind: "file", Title: "/etc/motd"}},
		{name: "bare title", input: "vim", wantErr: true},
		{name: "empty title", input: "Package['']", wantErr: true},
		{name: "unterminated", input: "Package['vim'", wantErr: true},
		{name: "numeric type", input: "1Package['vim']", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.input, got)
				}
				if !IsInvalidReference(err) {
					t.Errorf("expected InvalidResourceReference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestIdentifierString(t *testing.T) {
	id := NewIdentifier("Apt::Source", "Backports")
	if got := id.String(); got != "Apt::Source['backports']" {
		t.Errorf("unexpected rendering: %s", got)
	}

	pkg := PackageIdentifier("Vim")
	if pkg.Kind != "package" || pkg.Title != "singleton_package_vim" {
		t.Errorf("unexpected package identifier: %+v", pkg)
	}
}

func TestArgumentFrom(t *testing.T) {
	if _, err := ArgumentFrom("Package['vim']"); err != nil {
		t.Errorf("string argument rejected: %v", err)
	}

	arg, err := ArgumentFrom(NewIdentifier("User", "fu"))
	if err != nil {
		t.Fatalf("identifier argument rejected: %v", err)
	}
	if _, ok := arg.(TypedReference); !ok {
		t.Errorf("expected TypedReference, got %T", arg)
	}

	_, err = ArgumentFrom(42)
	if !IsUnsupportedArgument(err) {
		t.Fatalf("expected UnsupportedArgumentType, got %v", err)
	}
	if msg := err.Error(); msg == "" {
		t.Error("expected a diagnostic message")
	}
}

func TestTypedReferenceResolve(t *testing.T) {
	id, err := Ref("Service", "SSHD").Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != (ResourceIdentifier{Kind: "service", Title: "sshd"}) {
		t.Errorf("unexpected identifier: %+v", id)
	}

	if _, err := Ref("", "x").Resolve(); !IsInvalidReference(err) {
		t.Errorf("expected InvalidResourceReference for empty kind, got %v", err)
	}
}

func TestFlattenArguments(t *testing.T) {
	args := []interface{}{
		"Package['a']",
		[]interface{}{"Package['b']", []interface{}{"Package['c']"}},
		[]string{"Package['d']"},
	}
	flat := flattenArguments(args)
	if len(flat) != 4 {
		t.Fatalf("expected 4 items, got %d: %v", len(flat), flat)
	}
	if _, nested := flat[2].([]interface{}); !nested {
		t.Errorf("expected second level to stay nested, got %T", flat[2])
	}
}
