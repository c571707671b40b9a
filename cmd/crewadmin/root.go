package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	postgres "github.com/tripwell/crew-planner-api/internal/adapters/postgres"
	pgcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/crewrepo"
	pgidempotency "github.com/tripwell/crew-planner-api/internal/adapters/postgres/idempotency"
	pgtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/travelerrepo"
	pgtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/triprepo"
	"github.com/tripwell/crew-planner-api/internal/platform/config"
	"github.com/tripwell/crew-planner-api/internal/platform/logging"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	idempotencyport "github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
	travelerrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	triprepoport "github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

// store is the set of repositories the data commands operate on.
type store struct {
	travelers travelerrepoport.Repository
	crews     crewrepoport.Repository
	trips     triprepoport.Repository
	idem      idempotencyport.Purger
	close     func()
}

type openFunc func(ctx context.Context, databaseURL, issuer string) (*store, error)

func openPostgres(ctx context.Context, databaseURL, issuer string) (*store, error) {
	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		return nil, err
	}
	return &store{
		travelers: pgtravelerrepo.NewRepo(pool, issuer),
		crews:     pgcrewrepo.NewRepo(pool),
		trips:     pgtriprepo.NewRepo(pool),
		idem:      pgidempotency.NewStore(pool, issuer),
		close:     pool.Close,
	}, nil
}

// rootOptions holds global flags and the resolved process config.
type rootOptions struct {
	DatabaseURL string
	BaseURL     string
	Issuer      string
	LogLevel    string

	cfg  config.AppConfig
	log  *zap.Logger
	open openFunc
}

func newRootCommand(open openFunc) *cobra.Command {
	opts := &rootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "crewadmin",
		Short:         "Operator tasks for the crew planner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("database-url") {
				opts.DatabaseURL = cfg.DatabaseURL
			}
			if !cmd.Flags().Changed("base-url") {
				opts.BaseURL = cfg.PublicBaseURL
			}
			if !cmd.Flags().Changed("log-level") {
				opts.LogLevel = cfg.LogLevel
			}
			log, err := logging.New(opts.LogLevel, "console")
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = log
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "postgres connection URL (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "public base URL for invite links (default $PUBLIC_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Issuer, "issuer", "dev", "token issuer that scopes traveler subjects")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (default $LOG_LEVEL)")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newBackfillCommand(opts))
	cmd.AddCommand(newInviteURLCommand(opts))
	cmd.AddCommand(newPurgeIdempotencyCommand(opts))
	cmd.AddCommand(newProvisionTravelerCommand(opts))

	return cmd
}

func (o *rootOptions) requireDatabase() error {
	if o.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (set --database-url or DATABASE_URL)")
	}
	return nil
}

func (o *rootOptions) openStore(ctx context.Context) (*store, error) {
	if err := o.requireDatabase(); err != nil {
		return nil, err
	}
	return o.open(ctx, o.DatabaseURL, o.Issuer)
}
