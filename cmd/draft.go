package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/marketbook/internal/config"
	"github.com/example/marketbook/internal/db"
	"github.com/example/marketbook/internal/drafts"
	"github.com/example/marketbook/internal/migrate"
)

func newDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage checkout drafts",
	}
	cmd.AddCommand(newDraftCreateCmd())
	cmd.AddCommand(newDraftShowCmd())
	cmd.AddCommand(newDraftListCmd())
	return cmd
}

func openDrafts(ctx context.Context) (*drafts.Repo, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return drafts.NewRepo(d), d.Close, nil
}

func newDraftCreateCmd() *cobra.Command {
	var (
		businessID string
		duration   int
	)
	c := &cobra.Command{
		Use:   "create",
		Short: "Start a checkout draft for a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			d, err := repo.Create(ctx, drafts.Draft{BusinessID: businessID, DurationMinutes: duration})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created draft id=%s business=%s duration=%dm\n", d.ID, d.BusinessID, d.DurationMinutes)
			return nil
		},
	}
	c.Flags().StringVar(&businessID, "business", "", "business id")
	c.Flags().IntVar(&duration, "duration", 60, "service duration in minutes")
	_ = c.MarkFlagRequired("business")
	return c
}

func newDraftShowCmd() *cobra.Command {
	var id string
	c := &cobra.Command{
		Use:   "show",
		Short: "Show one checkout draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			d, err := repo.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("draft %s: %w", id, err)
			}
			printDraft(cmd, d)
			return nil
		},
	}
	c.Flags().StringVar(&id, "id", "", "draft id")
	_ = c.MarkFlagRequired("id")
	return c
}

func newDraftListCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "list",
		Short: "List recent checkout drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			ds, err := repo.List(ctx, limit)
			if err != nil {
				return err
			}
			for _, d := range ds {
				printDraft(cmd, d)
			}
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "maximum drafts to list")
	return c
}

func printDraft(cmd *cobra.Command, d drafts.Draft) {
	status := "pending"
	if d.Complete() {
		status = "complete"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id=%s business=%s duration=%dm date=%q time=%q status=%s updated=%s\n",
		d.ID, d.BusinessID, d.DurationMinutes, d.Date, d.Time, status, d.UpdatedAt.Format(time.RFC3339))
}
