package commands

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence"
	"github.com/jacksonlee411/leadimport/pkg/application"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
	"github.com/jacksonlee411/leadimport/pkg/eventbus"
)

// MigrationRunner is the subset of application.MigrationManager the
// migrate commands drive.
type MigrationRunner interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
}

// Opener returns a runner plus a cleanup func.
type Opener func(ctx context.Context) (MigrationRunner, func(), error)

// NewMigrateCommands creates the up, down and status commands.
func NewMigrateCommands(open Opener) []*cobra.Command {
	return []*cobra.Command{
		newMigrationCmd(open, "up", "Apply all pending migrations", MigrationRunner.Up),
		newMigrationCmd(open, "down", "Roll back the most recent migration", MigrationRunner.Down),
		newMigrationCmd(open, "status", "Print applied and pending migrations", MigrationRunner.Status),
	}
}

func newMigrationCmd(open Opener, use, short string, run func(MigrationRunner, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runner, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := run(runner, ctx); err != nil {
				return errors.Wrapf(err, "migrate %s", use)
			}
			return nil
		},
	}
}

// DatabaseOpener connects to the configured database and registers the
// lead import schema with a fresh application.
func DatabaseOpener(ctx context.Context) (MigrationRunner, func(), error) {
	conf := configuration.Use()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect database")
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	app.Migrations().RegisterSchema(persistence.MigrationsFS, persistence.MigrationsDir)

	return app.Migrations(), func() {
		pool.Close()
		conf.Unload()
	}, nil
}
