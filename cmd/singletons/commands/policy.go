package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPolicyCommand(flags *globalFlags, version string) *cobra.Command {
	var policyPaths []string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the policies compile --policy checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			eng, err := a.policies(cmd.Context(), policyPaths)
			if err != nil {
				return err
			}
			policies := eng.ListPolicies()

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), policies)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tTAGS\tDESCRIPTION")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n", p.Name, p.Severity, p.Enabled, strings.Join(p.Tags, ","), p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy-path", nil, "extra policy files or directories")

	return cmd
}
