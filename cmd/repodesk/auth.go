package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and report where the client lands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				s := a.desk.Session.Snapshot()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Signed in as %s (%s)\n", s.Username, s.ID)
				fmt.Fprintf(out, "Landing:      %s\n", a.desk.Nav.Current().Path)
				fmt.Fprintf(out, "Tab:          %s\n", a.desk.TabID())
				return nil
			})
		},
	}
}

func newWhoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.signIn(ctx); err != nil {
					return err
				}
				u, err := a.desk.Whoami(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:             %s\n", u.ID)
				fmt.Fprintf(out, "Username:       %s\n", u.Username)
				fmt.Fprintf(out, "Email:          %s\n", u.Email)
				fmt.Fprintf(out, "Repositories:   %s\n", joinOrDash(u.Repos))
				fmt.Fprintf(out, "Collaborations: %s\n", joinOrDash(u.Collaborations))
				return nil
			})
		},
	}
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
