// package repositories provides the persistence layer for resolution results.
//
// Resolution lookups are the most expensive part of a marketplace query, so
// successful (artist, album, threshold) resolutions are stored in SQLite and
// reused across runs.
package repositories

import (
	"database/sql"
	"fmt"
)

// schema holds the table definitions applied on open. CREATE IF NOT EXISTS
// keeps reopening an existing database cheap.
const schema = `
CREATE TABLE IF NOT EXISTS resolutions (
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	threshold REAL NOT NULL,
	master_id INTEGER NOT NULL DEFAULT 0,
	release_id INTEGER NOT NULL DEFAULT 0,
	score REAL NOT NULL DEFAULT 0,
	resolved_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (artist, album, threshold)
);
`

// Migrate applies the schema to the given database.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
