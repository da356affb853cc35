// Package statsdb persists the two append-mostly lifetime-usage tables
// spec.md §3 describes, backed by a pure-Go SQLite engine so the binary
// stays cross-compilable without cgo (spec.md's embedded-appliance
// deployment target).
package statsdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Mode names the lifetime counter a stats row tracks. Today only
// "distill" is credited (spec.md §4.F item 6), but the schema carries a
// free-text mode column for future counters.
type Mode string

const (
	ModeDistill Mode = "distill"
)

// logModeCode is stats_log's integer encoding of Mode (spec.md §3: "mode=1
// for distill").
func logModeCode(m Mode) int {
	switch m {
	case ModeDistill:
		return 1
	default:
		return 0
	}
}

// DB wraps the two-table store: stats (one row per mode, lifetime total)
// and stats_log (append-only increments, for audit).
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and ensures the
// schema exists, seeding stats("distill") with today's date and value=0
// on first boot.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: open %s: %w", path, err)
	}
	// SQLite tolerates only one writer; the control loop is the only
	// caller, but cap the pool anyway so a stray concurrent use can't
	// corrupt the single-writer assumption the loop already relies on.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.sql.Exec(`
		CREATE TABLE IF NOT EXISTS stats (
			date_since TEXT NOT NULL,
			mode       TEXT NOT NULL PRIMARY KEY,
			value      REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stats_log (
			ts    INTEGER NOT NULL,
			mode  INTEGER NOT NULL,
			value REAL NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("statsdb: migrate: %w", err)
	}

	var count int
	if err := db.sql.QueryRow(`SELECT COUNT(*) FROM stats WHERE mode = ?`, string(ModeDistill)).Scan(&count); err != nil {
		return fmt.Errorf("statsdb: seed check: %w", err)
	}
	if count == 0 {
		_, err := db.sql.Exec(`INSERT INTO stats(date_since, mode, value) VALUES (?, ?, 0)`,
			time.Now().Format("2006-01-02"), string(ModeDistill))
		if err != nil {
			return fmt.Errorf("statsdb: seed stats: %w", err)
		}
	}
	return nil
}

// LifetimeMinutes returns the current total for mode.
func (db *DB) LifetimeMinutes(mode Mode) (float64, error) {
	var v float64
	err := db.sql.QueryRow(`SELECT value FROM stats WHERE mode = ?`, string(mode)).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("statsdb: read %s: %w", mode, err)
	}
	return v, nil
}

// CreditMinutes adds deltaMinutes to mode's lifetime total and appends a
// matching stats_log row, in one transaction.
func (db *DB) CreditMinutes(now time.Time, mode Mode, deltaMinutes float64) error {
	if deltaMinutes <= 0 {
		return nil
	}
	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("statsdb: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE stats SET value = value + ? WHERE mode = ?`, deltaMinutes, string(mode)); err != nil {
		return fmt.Errorf("statsdb: credit: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO stats_log(ts, mode, value) VALUES (?, ?, ?)`,
		now.Unix(), logModeCode(mode), deltaMinutes); err != nil {
		return fmt.Errorf("statsdb: log: %w", err)
	}
	return tx.Commit()
}

// Close releases the underlying SQLite handle.
func (db *DB) Close() error { return db.sql.Close() }
