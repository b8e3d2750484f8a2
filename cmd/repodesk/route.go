package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/navigation"
)

func newRouteCmd(flags *globalFlags) *cobra.Command {
	var signedIn bool
	cmd := &cobra.Command{
		Use:   "route <path>",
		Short: "Show how the navigation guard resolves a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if signedIn {
					if err := a.signIn(ctx); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				d := a.desk.Nav.Guard().Resolve(ctx, args[0])
				switch d.Kind {
				case navigation.Allow:
					fmt.Fprintf(out, "allow    %s", d.Location)
					if d.Title != "" {
						fmt.Fprintf(out, " (%s)", d.Title)
					}
					fmt.Fprintln(out)
				default:
					fmt.Fprintf(out, "redirect %s (%s)\n", d.Location, d.Reason)
				}

				loc, err := a.desk.Nav.Navigate(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "settles  %s\n", loc.Path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&signedIn, "signed-in", false, "sign in before resolving")
	return cmd
}
