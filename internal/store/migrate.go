package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LatestVersion is the schema version a freshly opened store reaches.
const LatestVersion uint = 2

func newMigrate(path string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// runMigrations applies every pending migration. Migrations only create what
// is missing, so upgrading an older file keeps its data.
func runMigrations(path string) (uint, error) {
	return migrateTo(path, 0)
}

// migrateTo moves the schema up to version, or to the latest when version is
// 0. It never moves down: a file already at or past version is left as is.
func migrateTo(path string, version uint) (uint, error) {
	m, err := newMigrate(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = m.Close()
	}()

	current, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	switch {
	case version == 0:
		err = m.Up()
	case version > current:
		err = m.Migrate(version)
	default:
		err = migrate.ErrNoChange
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}
