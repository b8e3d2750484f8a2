package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/health"
)

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	var repoID string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend reachability, session and push channel",
		Long:  "Signs in when credentials are configured, then checks the REST backend, the session token and one dial of the push channel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return runDoctor(ctx, cmd, a, repoID)
			})
		},
	}
	cmd.Flags().StringVar(&repoID, "repo", "", "repository to probe the push channel with")
	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, a *app, repoID string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "RepoDesk Doctor")
	fmt.Fprintln(out, "===============")

	if err := a.signIn(ctx); err != nil {
		fmt.Fprintf(out, "  [WARN] sign-in: %v\n", err)
	}
	checker := a.desk.HealthChecker(a.logger)
	if repoID != "" {
		checker.Register("realtime", a.desk.RealtimeCheck(repoID))
	}

	results := checker.RunAll(ctx)
	for _, r := range results {
		fmt.Fprintf(out, "  [%s] %s: %s (%s)\n", doctorLabel(r.Status), r.Name, r.Detail, r.Elapsed.Round(time.Millisecond))
	}

	overall := health.Overall(results)
	fmt.Fprintf(out, "\nOverall: %s\n", overall)
	if overall == health.StatusDown {
		return fmt.Errorf("%d check(s) failed", countStatus(results, health.StatusDown))
	}
	return nil
}

func doctorLabel(s health.Status) string {
	switch s {
	case health.StatusOK:
		return "PASS"
	case health.StatusDegraded:
		return "WARN"
	default:
		return "FAIL"
	}
}

func countStatus(results []health.Result, s health.Status) int {
	n := 0
	for _, r := range results {
		if r.Status == s {
			n++
		}
	}
	return n
}
