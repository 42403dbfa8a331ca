package pgx

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all pending schema migrations to the database at
// databaseURL (postgres:// scheme).
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("[Store] Database schema ready", "version", version, "dirty", dirty)
	return nil
}
