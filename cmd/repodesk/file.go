package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFileCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "File commands",
	}

	cmd.AddCommand(newFileUploadCmd(flags))
	cmd.AddCommand(newFileDownloadCmd(flags))
	cmd.AddCommand(newFileDeleteCmd(flags))
	cmd.AddCommand(newFileShowCmd(flags))
	return cmd
}

func newFileUploadCmd(flags *globalFlags) *cobra.Command {
	var source bool
	cmd := &cobra.Command{
		Use:   "upload <repo-id> <path>",
		Short: "Upload a local file into a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				uploaded, err := a.desk.Upload(ctx, filepath.Base(args[1]), f, source)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s as %s\n\n", uploaded.Filename, uploaded.FileID)
				printFiles(out, a.desk.Repo.Current().Files)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&source, "source", false, "store as a source file")
	return cmd
}

func newFileDownloadCmd(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				data, err := a.desk.Download(ctx, args[0])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of stdout")
	return cmd
}

func newFileDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <repo-id> <file-id>",
		Short: "Delete a file from a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				if err := a.desk.DeleteFile(ctx, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
				return nil
			})
		},
	}
}

func newFileShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <repo-id> <file-id>",
		Short: "Show a file and its extracted result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				view, err := a.desk.SelectFile(ctx, args[1])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "File:     %s (%s)\n", view.Filename, view.FileID)
				fmt.Fprintf(out, "Status:   %s\n", fileStatus(view.File))
				if t, ok := view.UploadedTime(); ok {
					fmt.Fprintf(out, "Uploaded: %s\n", t.Format("2006-01-02 15:04"))
				}
				if len(view.ResultData.Content) == 0 {
					fmt.Fprintln(out, "\nNo result yet.")
					return nil
				}

				sections := make([]string, 0, len(view.ResultData.Content))
				for s := range view.ResultData.Content {
					sections = append(sections, s)
				}
				sort.Strings(sections)
				for _, s := range sections {
					fmt.Fprintf(out, "\n[%s]\n", s)
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					for _, item := range view.ResultData.Content[s] {
						fmt.Fprintf(w, "%s\t%s\n", item.Key, item.Value)
					}
					w.Flush()
				}
				return nil
			})
		},
	}
}
