package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "repodesk",
		Short:         "RepoDesk client for the document repository service",
		Long:          "RepoDesk signs in to the repository service, manages repositories and files, and talks to the document assistant.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLoginCmd(flags))
	cmd.AddCommand(newWhoamiCmd(flags))
	cmd.AddCommand(newRepoCmd(flags))
	cmd.AddCommand(newFileCmd(flags))
	cmd.AddCommand(newProcessCmd(flags))
	cmd.AddCommand(newTasksCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newRouteCmd(flags))
	cmd.AddCommand(newDoctorCmd(flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "repodesk %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", perrors.UserMessage(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
