package commands

import (
	"github.com/openfroyo/singletons/pkg/compiler"
	"github.com/openfroyo/singletons/pkg/policy"
	"github.com/spf13/cobra"
)

func newCompileCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		save        bool
		checkPolicy bool
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "compile MANIFEST",
		Short: "Compile a manifest into a catalog",
		Long: `Compile a Starlark manifest into a resource catalog.

Singleton requests are resolved against the hierarchy and declared once
each. Per-item problems (a malformed reference, an unsupported argument)
are reported as warnings; backend failures and duplicate declarations
abort the compilation.`,
		Example: `  # Compile and print the catalog
  singletons compile site.star

  # Compile, check policies and store the result
  singletons compile site.star --policy --save

  # Machine-readable output
  singletons compile site.star --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if err := a.telemetry.StartMetricsServer(); err != nil {
				return err
			}

			var policies *policy.Engine
			if checkPolicy || len(policyPaths) > 0 {
				if policies, err = a.policies(ctx, policyPaths); err != nil {
					return err
				}
			}
			c, err := a.compiler(policies)
			if err != nil {
				return err
			}

			result, compileErr := c.CompileFile(ctx, args[0])
			if result == nil {
				return compileErr
			}

			if save {
				store, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := a.save(ctx, store, result); err != nil {
					return err
				}
			}

			if flags.jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if compileErr == nil || compiler.IsPolicyRejection(compileErr) {
				printResult(cmd.OutOrStdout(), result)
			}
			return compileErr
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the compilation in the state database")
	cmd.Flags().BoolVar(&checkPolicy, "policy", false, "check the catalog against built-in and configured policies")
	cmd.Flags().StringSliceVar(&policyPaths, "policy-path", nil, "extra policy files or directories (implies --policy)")

	return cmd
}
