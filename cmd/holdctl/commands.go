package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/availability-holds/internal/app"
	"github.com/hackgods/availability-holds/internal/config"
	"github.com/hackgods/availability-holds/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := db.ConnectPostgres(cmd.Context(), cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				cmd.Println("schema is up to date")
			}
			for _, name := range applied {
				cmd.Printf("applied %s\n", name)
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var timeout time.Duration

	c := &cobra.Command{
		Use:   "sweep",
		Short: "Expire pending holds past their deadline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			n, err := a.Service.SweepExpired(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("expired %d holds\n", n)
			return nil
		},
	}

	c.Flags().DurationVar(&timeout, "timeout", time.Minute, "deadline for the sweep")
	return c
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions

	c := &cobra.Command{
		Use:   "seed",
		Short: "Create demo holds through the hold service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := db.Migrate(cmd.Context(), a.Pool); err != nil {
				return err
			}

			stats, err := seedHolds(cmd.Context(), a.Service, opts)
			if err != nil {
				return err
			}
			cmd.Printf("created=%d accepted=%d declined=%d conflicts=%d\n",
				stats.Created, stats.Accepted, stats.Declined, stats.Conflicts)
			return nil
		},
	}

	c.Flags().IntVar(&opts.Holdees, "holdees", 20, "number of calendars to fill")
	c.Flags().IntVar(&opts.HoldsPerHoldee, "holds", 10, "holds requested per calendar")
	c.Flags().Float64Var(&opts.RespondRatio, "respond-ratio", 0.6, "share of holds answered right away")
	c.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed, 0 picks one from the clock")
	return c
}
