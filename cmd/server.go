package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/marketbook/internal/db"
	"github.com/example/marketbook/internal/drafts"
	"github.com/example/marketbook/internal/migrate"
	"github.com/example/marketbook/internal/picker"
	"github.com/example/marketbook/internal/scheduling"
	"github.com/example/marketbook/internal/session"
	"github.com/example/marketbook/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking web host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := cfg.RequireServer(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			hashKey, blockKey, err := session.DeriveCookieKeys(cfg.SessionSecret)
			if err != nil {
				return err
			}

			client := scheduling.New(scheduling.Options{
				BaseURL: cfg.APIBaseURL,
				Timeout: cfg.APITimeout,
				Logger:  log,
			})

			ws := &web.Server{
				Fetchers:          func(s session.Session) picker.Fetcher { return client.WithSession(s) },
				Drafts:            drafts.NewRepo(d),
				Cookies:           session.NewCookieStore(hashKey, blockKey),
				SessionCookieName: cfg.SessionCookieName,
				LoginURL:          cfg.LoginURL,
				Log:               log,
			}
			h, err := ws.Routes()
			if err != nil {
				return err
			}

			log.Info("starting web host",
				zap.String("env", cfg.Env),
				zap.String("api_base_url", cfg.APIBaseURL),
			)
			return web.Start(ctx, cfg.ListenAddr, h, log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
