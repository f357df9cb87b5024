package commands

import (
	"fmt"

	"github.com/openfroyo/singletons/pkg/compiler"
	"github.com/spf13/cobra"
)

func newDeclareCommand(flags *globalFlags, version string) *cobra.Command {
	var call compiler.Call

	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Compile an ad-hoc singleton declaration",
		Long: `Declare singletons without a manifest and print the resulting catalog.

Packages are declared first, then resources, in one compilation pass.`,
		Example: `  # What would singleton_packages('vim') declare?
  singletons declare --packages vim

  # Resources use Type['title'] references
  singletons declare --resources "User['deploy']" --resources "Group['admins']"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(call.Packages) == 0 && len(call.Resources) == 0 {
				return fmt.Errorf("nothing to declare: pass --packages or --resources")
			}
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.compiler(nil)
			if err != nil {
				return err
			}
			result, err := c.CompileCall(cmd.Context(), call)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&call.Packages, "packages", "p", nil, "package titles")
	cmd.Flags().StringArrayVarP(&call.Resources, "resources", "r", nil, "resource references, e.g. User['fu']")

	return cmd
}
