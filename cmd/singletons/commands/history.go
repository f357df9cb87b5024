package commands

import (
	"fmt"

	"github.com/openfroyo/singletons/pkg/stores"
	"github.com/spf13/cobra"
)

func newHistoryCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		limit    int
		status   string
		manifest string
		prune    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored compilations",
		Example: `  singletons history
  singletons history --status failed --limit 5
  singletons history --prune 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if cmd.Flags().Changed("prune") {
				deleted, err := store.PruneCompilations(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d compilations\n", deleted)
				return nil
			}

			opts := stores.ListOptions{Limit: limit}
			if status != "" {
				s := stores.CompilationStatus(status)
				opts.Status = &s
			}
			if manifest != "" {
				opts.Manifest = &manifest
			}
			compilations, err := store.ListCompilations(ctx, opts)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), compilations)
			}
			return printCompilations(cmd.OutOrStdout(), compilations)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of compilations to list (0 for all)")
	cmd.Flags().StringVar(&status, "status", "", "only list compilations with this status (success, failed, rejected)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "only list compilations of this manifest")
	cmd.Flags().IntVar(&prune, "prune", 0, "delete all but the newest N compilations")

	return cmd
}

func newShowCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		kind   string
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a stored compilation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if remove {
				if err := store.DeleteCompilation(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted compilation %s\n", args[0])
				return nil
			}

			snap, err := store.GetCompilation(ctx, args[0])
			if err != nil {
				return err
			}
			if kind != "" {
				if snap.Resources, err = store.ListResources(ctx, args[0], &kind); err != nil {
					return err
				}
			}
			doc, err := snap.Document()
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"compilation": snap.Compilation,
					"catalog":     doc,
				})
			}

			c := snap.Compilation
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Compilation %s (%s, %s, %d resources, %dms)\n", c.ID, c.Manifest, c.Status, c.ResourceCount, c.DurationMs)
			if c.Error != nil {
				fmt.Fprintf(out, "Error: %s\n", *c.Error)
			}
			printDocument(out, doc)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only show resources of this kind")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the compilation instead of showing it")

	return cmd
}
