package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// globalFlags are shared by all commands.
type globalFlags struct {
	settingsPath string
	hieraConfig  string
	factsPath    string
	environment  string
	verbose      bool
	jsonOutput   bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "singletons",
		Short: "Compile catalogs with at-most-once singleton declarations",
		Long: `singletons compiles manifests into resource catalogs.

Manifests request shared resources with singleton_packages() and
singleton_resources(). Each resource is declared exactly once per catalog,
however many places ask for it, with parameters looked up in a
hierarchical configuration (hiera.yaml plus YAML, JSON or CUE data).

Settings are read from singletons.cue (or --settings) and FROYO_*
environment variables.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.settingsPath, "settings", "s", "", "settings file (default singletons.cue if present)")
	rootCmd.PersistentFlags().StringVar(&flags.hieraConfig, "hiera", "", "hierarchy configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.factsPath, "facts", "", "facts file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&flags.environment, "environment", "e", "", "environment name passed to policies")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newCompileCommand(flags, version))
	rootCmd.AddCommand(newDeclareCommand(flags, version))
	rootCmd.AddCommand(newLookupCommand(flags, version))
	rootCmd.AddCommand(newWatchCommand(flags, version))
	rootCmd.AddCommand(newHistoryCommand(flags, version))
	rootCmd.AddCommand(newShowCommand(flags, version))
	rootCmd.AddCommand(newPolicyCommand(flags, version))

	return rootCmd
}
