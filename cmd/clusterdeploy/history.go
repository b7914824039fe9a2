package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/clusterdeploy/internal/shell/store"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded pipeline runs",
	}
	cmd.AddCommand(newHistoryListCommand(a), newHistoryShowCommand(a), newHistoryDeleteCommand(a))
	return cmd
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(a.cfg.Database.DSN)
	if err != nil {
		return nil, exitError("open database", ExitDatabaseError, err)
	}
	return s, nil
}

func newHistoryListCommand(a *app) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), store.ListOptions{Limit: limit, Offset: offset}.Normalize())
			if err != nil {
				return exitError("list runs", ExitDatabaseError, err)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCLUSTER\tORCHESTRATOR\tSTATUS\tSTATE\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Name, r.ResourceGroup, r.ClusterName, r.Orchestrator,
					r.Status, r.FinalState, r.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")
	return cmd
}

func newHistoryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return exitError("get run", ExitDatabaseError, err)
			}

			fmt.Fprintf(a.out, "Run:          %s\n", r.ID)
			fmt.Fprintf(a.out, "Name:         %s\n", r.Name)
			fmt.Fprintf(a.out, "Cluster:      %s/%s (%s)\n", r.ResourceGroup, r.ClusterName, r.Orchestrator)
			fmt.Fprintf(a.out, "Status:       %s\n", r.Status)
			fmt.Fprintf(a.out, "Final state:  %s\n", r.FinalState)
			if r.ErrorMessage != "" {
				fmt.Fprintf(a.out, "Error:        %s\n", r.ErrorMessage)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nSEQ\tSTEP\tSTATE\tDURATION")
			for _, step := range r.Steps {
				duration := "-"
				if step.FinishedAt != nil {
					duration = step.FinishedAt.Sub(step.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", step.Seq, step.StepID, step.State, duration)
			}
			return w.Flush()
		},
	}
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return exitError("delete run", ExitDatabaseError, err)
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
}
