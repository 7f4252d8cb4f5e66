package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/marketbook/internal/db"
	"github.com/example/marketbook/internal/domain/availability"
	"github.com/example/marketbook/internal/drafts"
	"github.com/example/marketbook/internal/migrate"
	"github.com/example/marketbook/internal/picker"
	"github.com/example/marketbook/internal/refresh"
	"github.com/example/marketbook/internal/scheduling"
	"github.com/example/marketbook/internal/session"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		businessID string
		duration   int
		date       string
		pickTime   string
		draftID    string
		watch      time.Duration
	)

	c := &cobra.Command{
		Use:   "availability",
		Short: "Show bookable times for a business on a date, optionally picking one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			d, err := availability.ParseDate(date, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			onSelect := func(date, t string) {
				if t == "" {
					fmt.Fprintf(out, "date chosen: %s (time pending)\n", date)
					return
				}
				fmt.Fprintf(out, "time chosen: %s %s\n", date, t)
			}
			if draftID != "" {
				store, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := migrate.Up(ctx, store); err != nil {
					return err
				}
				repo := drafts.NewRepo(store)
				if _, err := repo.Get(ctx, draftID); err != nil {
					return fmt.Errorf("draft %s: %w", draftID, err)
				}
				record := drafts.Recorder(ctx, repo, draftID, log)
				show := onSelect
				onSelect = func(date, t string) {
					show(date, t)
					record(date, t)
				}
			}

			sess := session.FromToken(cfg.SessionCookieName, cfg.SessionToken, session.InvalidatorFunc(func() {
				log.Warn("marketplace session rejected; refresh SESSION_TOKEN")
			}))
			client := scheduling.New(scheduling.Options{
				BaseURL: cfg.APIBaseURL,
				Timeout: cfg.APITimeout,
				Session: sess,
				Logger:  log,
			})

			opts := []picker.Option{picker.WithOnSelect(onSelect), picker.WithLogger(log)}
			if watch > 0 {
				opts = append(opts, picker.WithOnChange(func(st picker.State) {
					if st.Status == picker.StatusLoading {
						return
					}
					fmt.Fprintf(out, "-- %s\n", time.Now().Format(time.Kitchen))
					_ = picker.Present(st).WriteText(out)
				}))
			}
			p := picker.New(client, opts...)
			p.Configure(ctx, businessID, duration)

			if err := p.PickDate(ctx, d); err != nil {
				return err
			}
			p.Wait()

			if pickTime != "" {
				if err := p.PickTime(pickTime); err != nil {
					_ = picker.Present(p.State()).WriteText(out)
					return fmt.Errorf("pick %s: %w", pickTime, err)
				}
			}

			if watch <= 0 {
				return picker.Present(p.State()).WriteText(out)
			}
			return runWatch(ctx, p, watch, log, out)
		},
	}

	c.Flags().StringVar(&businessID, "business", "", "business id")
	c.Flags().IntVar(&duration, "duration", 60, "service duration in minutes")
	c.Flags().StringVar(&date, "date", time.Now().Format(availability.DateLayout), "date YYYY-MM-DD")
	c.Flags().StringVar(&pickTime, "time", "", "time HH:MM to pick on --date")
	c.Flags().StringVar(&draftID, "draft", "", "checkout draft id to record the selection into")
	c.Flags().DurationVar(&watch, "watch", 0, "keep refreshing availability on this interval (e.g. 30s)")

	_ = c.MarkFlagRequired("business")
	return c
}

func runWatch(ctx context.Context, p *picker.Picker, every time.Duration, log *zap.Logger, out io.Writer) error {
	r := &refresh.Refresher{Target: p, Interval: every, Log: log}
	err := r.Run(ctx)
	p.Wait()
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "stopped")
		return nil
	}
	return err
}
