package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/danthegoodman1/framestore/gologger"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	//go:embed *.sql
	migrations embed.FS

	ErrMigrationsNotRun = fmt.Errorf("not all migrations applied")

	logger = gologger.NewLogger()
)

// RunMigrations brings the container file's catalog schema up to date.
// The caller owns the handle.
func RunMigrations(db *sql.DB) (int, error) {
	src := migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       ".",
	}
	ms := migrate.MigrationSet{
		TableName: "fs_migrations",
	}
	return ms.Exec(db, "sqlite3", src, migrate.Up)
}

// CheckMigrations verifies the catalog schema is current without
// applying anything, for read-only handles.
func CheckMigrations(db *sql.DB) error {
	src := migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       ".",
	}
	ms := migrate.MigrationSet{
		TableName: "fs_migrations",
	}
	migration, _, err := ms.PlanMigration(db, "sqlite3", src, migrate.Up, 0)
	if err != nil {
		return err
	}
	if len(migration) > 0 {
		for _, mig := range migration {
			logger.Warn().Str("migrationID", mig.Id).Msg("missing migration")
		}
		return ErrMigrationsNotRun
	}
	return nil
}
