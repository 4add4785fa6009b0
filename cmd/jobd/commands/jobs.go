package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobkit/pkg/store"
	"github.com/vulntor/jobkit/pkg/work"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect recorded jobs",
	}
	cmd.AddCommand(newJobsListCommand())
	cmd.AddCommand(newJobsShowCommand())
	return cmd
}

func newJobsListCommand() *cobra.Command {
	var (
		status string
		kind   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job records from the workspace store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.List(cmd.Context(), store.Filter{Status: status, Kind: kind})
			if err != nil {
				return fmt.Errorf("list job records: %w", err)
			}

			if asJSON {
				return printJSON(cmd, records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tENQUEUED\tDURATION")
			for _, rec := range records {
				duration := "-"
				if rec.Duration > 0 {
					duration = fmt.Sprintf("%ds", rec.Duration)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.Kind, rec.Status,
					rec.EnqueuedAt.Format("2006-01-02 15:04:05"), duration)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, running, completed, failed, cancelled)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by job kind")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newJobsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				if store.IsNotFound(err) {
					return fmt.Errorf("no record for job %q", args[0])
				}
				return fmt.Errorf("read job record: %w", err)
			}
			return printJSON(cmd, rec)
		},
	}
}

func newKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered job kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := make([]string, 0, len(work.Kinds()))
			for kind := range work.Kinds() {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
			}
			return nil
		},
	}
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	cfg := cfgManager.Get()
	if cfg.Store.Disabled {
		return nil, fmt.Errorf("job store is disabled")
	}
	st, err := store.NewLocalStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return st, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
