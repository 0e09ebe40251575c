package postgres

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "adsorpnet_schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationState is the applied schema version. Dirty means a migration
// failed halfway and needs manual repair.
type MigrationState struct {
	Version uint
	Dirty   bool
	Latest  uint
}

// Pending reports whether the latest embedded migration is not yet applied.
func (s MigrationState) Pending() bool { return s.Version < s.Latest }

// migrationSource returns the embedded migrations.
func migrationSource() (source.Driver, error) {
	return iofs.New(migrationFS, "migrations")
}

// LatestMigration returns the highest embedded migration version.
func LatestMigration() (uint, error) {
	src, err := migrationSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}

// withMigrate runs fn on a migrate instance bound to one dedicated
// connection of the pool. The pool itself stays open.
func (c *Connection) withMigrate(ctx context.Context, fn func(m *migrate.Migrate) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to acquire migration connection")
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		conn.Close()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}

	src, err := migrationSource()
	if err != nil {
		driver.Close()
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		src.Close()
		driver.Close()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	return fn(m)
}

// MigrateUp applies every pending migration.
func (c *Connection) MigrateUp(ctx context.Context) error {
	return c.withMigrate(ctx, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
			version, _, _ := m.Version()
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations").
				WithDetail(fmt.Sprintf("current_version=%d", version))
		}

		version, dirty, err := m.Version()
		if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
			c.logger.Warn("Failed to get migration version", logging.Err(err))
		}
		c.logger.Info("Database migrations completed",
			logging.Int64("version", int64(version)),
			logging.Bool("dirty", dirty),
		)
		return nil
	})
}

// MigrateDown rolls back steps migrations.
func (c *Connection) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errors.NewInvalidInputError(fmt.Sprintf("steps must be greater than 0, got %d", steps))
	}
	return c.withMigrate(ctx, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if stderrors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to roll back %d step(s)", steps))
		}
		c.logger.Info("Rolled back database migrations", logging.Int("steps", steps))
		return nil
	})
}

// MigrationStatus reports the applied and latest embedded versions.
func (c *Connection) MigrationStatus(ctx context.Context) (MigrationState, error) {
	latest, err := LatestMigration()
	if err != nil {
		return MigrationState{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to read embedded migrations")
	}

	state := MigrationState{Latest: latest}
	err = c.withMigrate(ctx, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
		}
		state.Version, state.Dirty = version, dirty
		return nil
	})
	return state, err
}
