package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newProcessCmd(flags *globalFlags) *cobra.Command {
	var multi bool
	cmd := &cobra.Command{
		Use:   "process <repo-id> <file-id>",
		Short: "Start server-side processing of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				task, err := a.desk.Process(ctx, args[1], multi)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started task %s for %s\n", task.TaskID, task.FileID)
				if task.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), task.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&multi, "multi", false, "use multi-document processing")
	return cmd
}

func newTasksCmd(flags *globalFlags) *cobra.Command {
	var cancel string
	cmd := &cobra.Command{
		Use:   "tasks <file-id>",
		Short: "List processing tasks of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				if cancel != "" {
					if err := a.desk.CancelTask(ctx, cancel); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %s\n\n", cancel)
				}
				list, err := a.desk.Tasks(ctx, args[0])
				if err != nil {
					return err
				}
				if len(list.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TASK\tSTATUS\tCREATED")
				for _, t := range list.Tasks {
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.TaskID, t.Status, time.Unix(t.CreatedAt, 0).Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&cancel, "cancel", "", "cancel this task before listing")
	return cmd
}
