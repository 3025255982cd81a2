package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/session"
	"github.com/cleared-dev/bursar/internal/store"
)

func newWatchCommand(g *globalFlags) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow changes other sessions make to the period",
		Long: "Follow changes other sessions make to the period. Each change is reconciled " +
			"into this session and the student balances are printed again. Stops on interrupt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, g, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", store.DefaultDebounce, "wait for writes to settle this long")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, g *globalFlags, debounce time.Duration) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	b, err := a.openBook()
	if err != nil {
		return err
	}
	changes, err := a.store.Watch(ctx, a.key, debounce)
	if err != nil {
		return err
	}

	s := session.New(b, a.store, a.log.Named("session"))
	report := make(chan store.Change, 1)
	go func() {
		defer close(report)
		for c := range changes {
			reloaded, err := s.Reconcile()
			if err != nil {
				a.log.Warn("reconcile failed", zap.Error(err))
				continue
			}
			if !reloaded {
				continue
			}
			select {
			case report <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.printf("Watching %s (Ctrl-C to stop)\n", a.key)
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-report:
			if !ok {
				return nil
			}
			a.printf("%s changed at %s\n", c.Key(), time.Now().Format(time.TimeOnly))
			for _, bal := range s.Book().Balances() {
				a.printf("  %-10s %s\n", bal.StudentID, a.money(bal.Balance))
			}
		}
	}
}
