// Package database provides SQLite connectivity for the controller's
// registration audit log.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Forward-only schema migrations from an fs.FS
//   - Connection lifecycle and health checks
//
// The database is observability only. Device identities are never
// restored from it; every controller start begins with an empty registry.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
