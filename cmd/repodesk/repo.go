package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/models"
)

func newRepoCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Repository commands",
	}

	cmd.AddCommand(newRepoShowCmd(flags))
	cmd.AddCommand(newRepoCreateCmd(flags))
	cmd.AddCommand(newRepoDeleteCmd(flags))
	cmd.AddCommand(newRepoRenameCmd(flags))
	cmd.AddCommand(newRepoAddCollaboratorCmd(flags))
	return cmd
}

func newRepoShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <repo-id>",
		Short: "Show a repository with its files and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				printRepo(cmd.OutOrStdout(), a.desk.Repo.Current())
				return nil
			})
		},
	}
}

func newRepoCreateCmd(flags *globalFlags) *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a repository owned by the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				repo, err := a.desk.CreateRepo(ctx, args[0], desc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created repository %s (%s)\n", repo.Name, repo.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "repository description")
	return cmd
}

func newRepoDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <repo-id>",
		Short: "Delete a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				if err := a.desk.DeleteRepo(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted repository %s\n", args[0])
				return nil
			})
		},
	}
}

func newRepoRenameCmd(flags *globalFlags) *cobra.Command {
	var (
		name string
		desc string
	)
	cmd := &cobra.Command{
		Use:   "rename <repo-id>",
		Short: "Change a repository's name and/or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				cur := a.desk.Repo.Current()
				if !cmd.Flags().Changed("name") {
					name = cur.Name
				}
				if !cmd.Flags().Changed("description") {
					desc = cur.Description
				}
				if err := a.desk.UpdateRepo(ctx, name, desc); err != nil {
					return err
				}
				printRepo(cmd.OutOrStdout(), a.desk.Repo.Current())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "new description")
	return cmd
}

func newRepoAddCollaboratorCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add-collaborator <repo-id> <user-id>",
		Short: "Give another user access to a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				if err := a.desk.AddCollaborator(ctx, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func printRepo(out io.Writer, repo models.Repository) {
	fmt.Fprintf(out, "Repository:    %s (%s)\n", repo.Name, repo.ID)
	if repo.Description != "" {
		fmt.Fprintf(out, "Description:   %s\n", repo.Description)
	}
	fmt.Fprintf(out, "Owner:         %s\n", repo.OwnerID)
	fmt.Fprintf(out, "Collaborators: %s\n", joinOrDash(repo.Collaborators))

	if len(repo.Files) > 0 {
		fmt.Fprintln(out)
		printFiles(out, repo.Files)
	}
	if len(repo.Results) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RESULT\tFILE\tSOURCE\tSTATUS")
		for _, r := range repo.Results {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.FileID, r.Filename, r.SourceFile, r.Status)
		}
		w.Flush()
	}
}

func printFiles(out io.Writer, files []models.File) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tNAME\tSIZE\tSTATUS")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.FileID, f.Filename, f.Size, fileStatus(f))
	}
	w.Flush()
}

func fileStatus(f models.File) string {
	if p, ok := f.Progress(); ok {
		if p >= 1 {
			return "processed"
		}
		return fmt.Sprintf("%.0f%%", p*100)
	}
	if f.Status == "" {
		return "-"
	}
	return f.Status
}
