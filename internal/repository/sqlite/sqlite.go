package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"echopath/internal/repository"

	_ "github.com/mattn/go-sqlite3"
)

var _ repository.Journal = (*DB)(nil)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex

	announcements *AnnouncementRepository
	snapshots     *SnapshotRepository
}

// New creates and initializes a new SQLite database connection. ":memory:"
// opens a private in-memory database.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db.announcements = NewAnnouncementRepository(db)
	db.snapshots = NewSnapshotRepository(db)
	return db, nil
}

// Migrate creates the necessary tables if they don't exist.
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		objects TEXT NOT NULL DEFAULT '[]',
		prompt TEXT NOT NULL,
		message TEXT NOT NULL,
		fallback INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS announcement_objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		announcement_id TEXT NOT NULL,
		object_name TEXT NOT NULL,
		FOREIGN KEY (announcement_id) REFERENCES announcements(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		announcement_id TEXT NOT NULL,
		filename TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		filepath TEXT NOT NULL,
		filesize INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_announcements_session ON announcements(session_id);
	CREATE INDEX IF NOT EXISTS idx_announcements_timestamp ON announcements(timestamp);
	CREATE INDEX IF NOT EXISTS idx_announcement_objects_name ON announcement_objects(object_name);
	CREATE INDEX IF NOT EXISTS idx_snapshots_announcement ON snapshots(announcement_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Announcements() repository.AnnouncementRepository {
	return db.announcements
}

func (db *DB) Snapshots() repository.SnapshotRepository {
	return db.snapshots
}

func (db *DB) Backend() string {
	return "sqlite"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }
