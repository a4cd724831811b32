package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// MigrationsURL turns a directory into a golang-migrate source URL. Values
// that already carry a scheme are returned unchanged.
func MigrationsURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// RunMigrations applies every pending migration in migrationsPath to dsn.
// It returns the schema version after the run.
func RunMigrations(dsn, migrationsPath string) (uint, error) {
	m, err := migrate.New(MigrationsURL(migrationsPath), dsn)
	if err != nil {
		return 0, fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate.Up: %w", err)
	}
	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migrate.Version: %w", err)
	}
	return v, nil
}
