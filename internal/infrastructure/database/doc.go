// Package database provides SQLite connectivity for the auth service.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations with up and down files
//   - Constraint error classification for repositories
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and
// YYYYMMDD_HHMMSS_description.down.sql and live in the top-level
// migrations package, which embeds them into the binary.
package database
