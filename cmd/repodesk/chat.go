package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/models"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the document assistant",
	}

	cmd.AddCommand(newChatAskCmd(flags))
	cmd.AddCommand(newChatHistoryCmd(flags))
	return cmd
}

func newChatAskCmd(flags *globalFlags) *cobra.Command {
	var (
		fileIDs []string
		upload  string
	)
	cmd := &cobra.Command{
		Use:   "ask <repo-id> <message...>",
		Short: "Ask a question about a repository",
		Long:  "Asks about the whole repository, about stored files (--file, repeatable) or about a local file that is sent along (--upload).",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args[1:], " ")
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}

				var (
					ex  models.Exchange
					err error
				)
				switch {
				case upload != "":
					var f *os.File
					if f, err = os.Open(upload); err != nil {
						return err
					}
					defer f.Close()
					ex, err = a.desk.AskWithUpload(ctx, message, filepath.Base(upload), f)
				case len(fileIDs) == 1:
					ex, err = a.desk.AskAboutFile(ctx, message, fileIDs[0])
				case len(fileIDs) > 1:
					ex, err = a.desk.AskAboutFiles(ctx, message, fileIDs)
				default:
					ex, err = a.desk.Ask(ctx, message)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ex.Answer.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&fileIDs, "file", "f", nil, "ask about this stored file (repeatable)")
	cmd.Flags().StringVar(&upload, "upload", "", "send this local file with the question")
	cmd.MarkFlagsMutuallyExclusive("file", "upload")
	return cmd
}

func newChatHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <repo-id>",
		Short: "Print the conversation of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.openRepo(ctx, args[0]); err != nil {
					return err
				}
				h, err := a.desk.ChatHistory(ctx)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}
}

func printHistory(out io.Writer, h models.ChatHistory) {
	if len(h.Texts) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for i, ex := range h.Texts {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printMessage(out, ex.Question)
		printMessage(out, ex.Answer)
	}
}

func printMessage(out io.Writer, m models.ChatMessage) {
	if m.Timestamp != "" {
		fmt.Fprintf(out, "%s [%s]: %s\n", m.Sayer, m.Timestamp, m.Text)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", m.Sayer, m.Text)
}
