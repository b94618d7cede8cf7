// Package sessiondb gives an operator a queryable history of who
// connected to a ServerCore and when, independent of the in-memory
// broadcast/subscriber state that disappears on process restart.
//
// Registry satisfies servercore.SessionRecorder structurally: writes
// here are best-effort logging, never on the hot streaming path. A
// registry error is logged and swallowed by the caller, never
// propagated into a WebSocket/UDP loop.
package sessiondb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vrrop/vrrop/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SessionRecord is one row of connection history, as rendered by the
// admin debug page.
type SessionRecord struct {
	SessionID        uuid.UUID
	RemoteAddr       string
	ConnectedAt      time.Time
	DisconnectedAt   *time.Time
	DisconnectReason string
}

// Registry is a SQLite-backed connection log.
type Registry struct {
	db    *sql.DB
	clock timeutil.Clock
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return nil
}

// Open opens (creating if absent) a SQLite database at path and applies
// embedded migrations.
func Open(path string) (*Registry, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with an injectable clock, for tests that need
// deterministic connected/disconnected timestamps.
func OpenWithClock(path string, clock timeutil.Clock) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Registry{db: db, clock: clock}
	if err := r.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: m.Close() is not called here — the sqlite driver's Close()
	// would close db, which Registry manages separately.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// DB exposes the underlying connection for read-only tooling (the admin
// package's tailsql browser). Callers must not write through it.
func (r *Registry) DB() *sql.DB {
	return r.db
}

// RecordConnect inserts a new session row and returns its generated ID.
func (r *Registry) RecordConnect(remoteAddr string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, remote_addr, connected_at_unix_nanos) VALUES (?, ?, ?)`,
		id.String(), remoteAddr, r.clock.Now().UnixNano(),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// RecordDisconnect marks an existing session as closed.
func (r *Registry) RecordDisconnect(sessionID uuid.UUID, reason string) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET disconnected_at_unix_nanos = ?, disconnect_reason = ? WHERE id = ?`,
		r.clock.Now().UnixNano(), reason, sessionID.String(),
	)
	return err
}

// RecentSessions returns up to limit sessions, most recently connected
// first.
func (r *Registry) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, remote_addr, connected_at_unix_nanos, disconnected_at_unix_nanos, disconnect_reason
		 FROM sessions ORDER BY connected_at_unix_nanos DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var idStr, remoteAddr string
		var connectedNanos int64
		var disconnectedNanos sql.NullInt64
		var reason sql.NullString
		if err := rows.Scan(&idStr, &remoteAddr, &connectedNanos, &disconnectedNanos, &reason); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt session_id %q: %w", idStr, err)
		}
		rec := SessionRecord{
			SessionID:        id,
			RemoteAddr:       remoteAddr,
			ConnectedAt:      time.Unix(0, connectedNanos).UTC(),
			DisconnectReason: reason.String,
		}
		if disconnectedNanos.Valid {
			t := time.Unix(0, disconnectedNanos.Int64).UTC()
			rec.DisconnectedAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
