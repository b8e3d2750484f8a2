package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/realtime"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch <repo-id>",
		Short: "Open a repository and stream live changes",
		Long:  "Opens the repository's push channel and prints channel state, events and file list changes until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return runWatch(ctx, cmd.OutOrStdout(), a, args[0], duration)
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

// syncWriter serializes lines written from listener goroutines.
type syncWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *syncWriter) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s "+format+"\n", append([]any{time.Now().Format("15:04:05")}, args...)...)
}

func runWatch(ctx context.Context, out io.Writer, a *app, repoID string, duration time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	w := &syncWriter{out: out}
	d := a.desk

	defer d.Channel.Subscribe(func(s realtime.State) {
		w.printf("channel %s", s)
	})()
	defer d.Channel.SubscribeEvents(func(ev realtime.Event) {
		w.printf("event %s repo=%s file=%s status=%s", ev.Type, ev.RepoID, ev.FileID, ev.Status)
	})()
	defer d.Repo.Subscribe(func(r models.Repository) {
		w.printf("repo %s: %d files, %d results", r.ID, len(r.Files), len(r.Results))
		for _, f := range r.Files {
			w.printf("  %s %s %s", f.FileID, f.Filename, fileStatus(f))
		}
	})()

	if err := a.openRepo(ctx, repoID); err != nil {
		return err
	}

	<-ctx.Done()
	w.printf("stopped")
	return nil
}
