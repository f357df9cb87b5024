package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/openfroyo/singletons/pkg/catalog"
	"github.com/openfroyo/singletons/pkg/compiler"
	"github.com/openfroyo/singletons/pkg/manifest"
	"github.com/openfroyo/singletons/pkg/policy"
	"github.com/openfroyo/singletons/pkg/stores"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders a compilation result as text.
func printResult(w io.Writer, result *compiler.Result) {
	fmt.Fprintf(w, "Compilation %s (%s, %d resources, %s)\n",
		result.ID, result.Status, result.Catalog.Len(), result.Duration.Round(time.Millisecond))
	printDocument(w, result.Catalog.Document())
	printDiagnostics(w, result.Diagnostics)
	if result.Policy != nil {
		printPolicy(w, result.Policy)
	}
}

func printDocument(w io.Writer, doc catalog.Document) {
	if len(doc.Classes) > 0 {
		fmt.Fprintf(w, "Classes: %s\n", strings.Join(doc.Classes, ", "))
	}
	for _, r := range doc.Resources {
		fmt.Fprintln(w, r.Ref())
		keys := r.SortedParameterKeys()
		width := 0
		for _, k := range keys {
			if len(k) > width {
				width = len(k)
			}
		}
		for _, k := range keys {
			fmt.Fprintf(w, "    %-*s => %s\n", width, k, formatValue(r.Parameters[k]))
		}
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", val)
	case nil:
		return "undef"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func printDiagnostics(w io.Writer, diags []manifest.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "warning: %s(%q): %s\n", d.Operation, d.Input, d.Message)
	}
}

func printPolicy(w io.Writer, pr *policy.PolicyResult) {
	fmt.Fprintf(w, "Policies: %d evaluated, %d violations\n", len(pr.EvaluatedPolicies), len(pr.Violations))
	for _, v := range pr.Violations {
		fmt.Fprintf(w, "  [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	for _, warning := range pr.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func printCompilations(w io.Writer, compilations []*stores.Compilation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMANIFEST\tSTATUS\tRESOURCES\tDURATION\tCOMPILED")
	for _, c := range compilations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			c.ID, c.Manifest, c.Status, c.ResourceCount, c.DurationMs, c.CompiledAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// snapshotOf converts a compilation result into a stored snapshot.
func snapshotOf(result *compiler.Result, environment string) (*stores.Snapshot, error) {
	c := &stores.Compilation{
		Manifest:    result.Manifest,
		Status:      stores.CompilationStatus(result.Status),
		Environment: environment,
		DurationMs:  result.Duration.Milliseconds(),
	}
	if len(result.Diagnostics) > 0 {
		b, err := json.Marshal(result.Diagnostics)
		if err != nil {
			return nil, err
		}
		c.Diagnostics = string(b)
	}
	if result.Policy != nil {
		b, err := json.Marshal(result.Policy)
		if err != nil {
			return nil, err
		}
		s := string(b)
		c.Policy = &s
	}
	if result.Error != "" {
		e := result.Error
		c.Error = &e
	}
	return stores.NewSnapshot(c, result.Catalog.Document())
}
