package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Init opens the moderation database and ensures all tables exist.
func Init(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to moderation database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS claim_mappings (
	          mapping_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          guild_id TEXT NOT NULL,
	          subject_kind TEXT NOT NULL,
	          subject_id TEXT NOT NULL,
	          claim TEXT NOT NULL,
	          mapping_type TEXT NOT NULL,
	          created_by TEXT NOT NULL,
	          created_at INTEGER NOT NULL,
	          deleted_by TEXT,
	          deleted_at INTEGER
	      );
	      CREATE TABLE IF NOT EXISTS infractions (
	          infraction_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          guild_id TEXT NOT NULL,
	          subject_id TEXT NOT NULL,
	          infraction_type TEXT NOT NULL,
	          reason TEXT NOT NULL,
	          duration_seconds INTEGER,
	          created_by TEXT NOT NULL,
	          created_at INTEGER NOT NULL,
	          rescinded_at INTEGER,
	          rescind_reason TEXT,
	          deleted_at INTEGER
	      );
	      CREATE TABLE IF NOT EXISTS designated_role_mappings (
	          mapping_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          guild_id TEXT NOT NULL,
	          role_id TEXT NOT NULL,
	          designation_type TEXT NOT NULL,
	          created_by TEXT NOT NULL,
	          created_at INTEGER NOT NULL,
	          deleted_by TEXT,
	          deleted_at INTEGER
	      );
	      CREATE TABLE IF NOT EXISTS moderation_actions (
	          action_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          guild_id TEXT NOT NULL,
	          action_type TEXT NOT NULL,
	          actor_id TEXT NOT NULL,
	          created_at INTEGER NOT NULL,
	          infraction_id INTEGER NOT NULL
	      );
	      CREATE TABLE IF NOT EXISTS configuration_actions (
	          action_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          guild_id TEXT NOT NULL,
	          action_type TEXT NOT NULL,
	          actor_id TEXT NOT NULL,
	          created_at INTEGER NOT NULL,
	          claim_mapping_id INTEGER,
	          designated_role_mapping_id INTEGER
	      );`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create moderation tables: %w", err)
	}

	return db, nil
}
