package commands

import (
	"fmt"

	"github.com/openfroyo/singletons/pkg/telemetry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newLookupCommand(flags *globalFlags, version string) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "lookup KEY",
		Short: "Show the value the hierarchy resolves for a key",
		Example: `  singletons lookup singleton_package_vim
  singletons lookup singleton_resource_user_deploy --sources`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			op := telemetry.StartOperation(a.telemetry.WithContext(cmd.Context()), "lookup")
			defer func() { op.End(err) }()

			if showSources {
				for _, src := range a.hierarchy.Sources() {
					fmt.Fprintf(cmd.ErrOrStderr(), "# %s: %s (%s)\n", src.Level, src.Path, src.Format)
				}
			}

			value, found, err := a.hierarchy.Lookup(op.Ctx, args[0])
			if err != nil {
				return err
			}
			a.telemetry.Metrics.RecordLookup("cli", found)
			op.Logger.WithField("key", args[0]).WithField("found", found).Debug("Lookup finished")
			if !found {
				return fmt.Errorf("no value found for key %s", args[0])
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), value)
			}
			out, err := yaml.Marshal(value)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "print the hierarchy files consulted")

	return cmd
}
