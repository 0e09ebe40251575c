package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/database/postgres"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// openPostgres is swapped in tests.
var openPostgres = func(cliCtx *CLIContext) (migrator, error) {
	if !cliCtx.Config.Postgres.Enabled {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "postgres is disabled; set postgres.enabled")
	}
	return postgres.NewConnection(cliCtx.Config.Postgres, cliCtx.Logger)
}

// migrator is the schema surface of a postgres connection.
type migrator interface {
	MigrateUp(ctx context.Context) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the prediction history schema",
	}

	run := func(fn func(cmd *cobra.Command, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			cmd.SetContext(ctx)

			m, err := openPostgres(cliCtx)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m migrator) error {
			if err := m.MigrateUp(cmd.Context()); err != nil {
				return err
			}
			return printMigrationState(cmd, m)
		}),
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m migrator) error {
			if err := m.MigrateDown(cmd.Context(), steps); err != nil {
				return err
			}
			return printMigrationState(cmd, m)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m migrator) error {
			return printMigrationState(cmd, m)
		}),
	})

	return cmd
}

// migrationView renders a schema version report.
type migrationView struct {
	Version uint `json:"version"`
	Latest  uint `json:"latest"`
	Dirty   bool `json:"dirty"`
	Pending bool `json:"pending"`
}

func (v migrationView) TableHeaders() []string { return []string{"VERSION", "LATEST", "DIRTY", "PENDING"} }

func (v migrationView) TableRows() [][]string {
	return [][]string{{fmt.Sprint(v.Version), fmt.Sprint(v.Latest), fmt.Sprint(v.Dirty), fmt.Sprint(v.Pending)}}
}

func (v migrationView) String() string {
	s := fmt.Sprintf("Schema version %d of %d", v.Version, v.Latest)
	switch {
	case v.Dirty:
		s += " (dirty, needs manual repair)"
	case v.Pending:
		s += " (migrations pending)"
	default:
		s += " (up to date)"
	}
	return s + "\n"
}

func printMigrationState(cmd *cobra.Command, m migrator) error {
	st, err := m.MigrationStatus(cmd.Context())
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationView{Version: st.Version, Latest: st.Latest, Dirty: st.Dirty, Pending: st.Pending()})
}
