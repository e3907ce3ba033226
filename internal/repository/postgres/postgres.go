// Package postgres stores the announcement journal in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"echopath/internal/models"
	"echopath/internal/repository"

	"github.com/jackc/pgx/v5"
)

var (
	_ repository.Journal                = (*Store)(nil)
	_ repository.AnnouncementRepository = (*announcements)(nil)
	_ repository.SnapshotRepository     = (*snapshots)(nil)
)

// Store wraps a single pgx connection. pgx.Conn is not safe for concurrent
// use, so every query holds mu.
type Store struct {
	conn *pgx.Conn
	mu   sync.Mutex
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.Migrate(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return s, nil
}

// Migrate creates the necessary tables if they don't exist.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			objects TEXT[] NOT NULL DEFAULT '{}',
			prompt TEXT NOT NULL,
			message TEXT NOT NULL,
			fallback BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS snapshots (
			id BIGSERIAL PRIMARY KEY,
			announcement_id TEXT NOT NULL,
			filename TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			filepath TEXT NOT NULL,
			filesize BIGINT DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS announcements_session_idx ON announcements (session_id);
		CREATE INDEX IF NOT EXISTS announcements_timestamp_idx ON announcements (timestamp);
		CREATE INDEX IF NOT EXISTS announcements_objects_idx ON announcements USING GIN (objects);
		CREATE INDEX IF NOT EXISTS snapshots_announcement_idx ON snapshots (announcement_id);
	`)
	return err
}

func (s *Store) Announcements() repository.AnnouncementRepository {
	return &announcements{s}
}

func (s *Store) Snapshots() repository.SnapshotRepository {
	return &snapshots{s}
}

func (s *Store) Backend() string {
	return "postgres"
}

// Close terminates the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(context.Background())
}

type announcements struct {
	s *Store
}

func (r *announcements) Insert(ctx context.Context, a *models.Announcement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	objects := a.Objects
	if objects == nil {
		objects = []string{}
	}
	_, err := r.s.conn.Exec(ctx, `
		INSERT INTO announcements (id, session_id, timestamp, objects, prompt, message, fallback)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.SessionID, a.Timestamp, objects, a.Prompt, a.Message, a.Fallback)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func (r *announcements) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var a models.Announcement
	err := r.s.conn.QueryRow(ctx, `
		SELECT id, session_id, timestamp, objects, prompt, message, fallback
		FROM announcements WHERE id = $1
	`, id).Scan(&a.ID, &a.SessionID, &a.Timestamp, &a.Objects, &a.Prompt, &a.Message, &a.Fallback)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return &a, nil
}

func (r *announcements) GetAll(ctx context.Context, filter *models.AnnouncementFilter) ([]models.Announcement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	query := `SELECT id, session_id, timestamp, objects, prompt, message, fallback FROM announcements WHERE TRUE`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.SessionID != "" {
			query += " AND session_id = " + arg(filter.SessionID)
		}
		if filter.Object != "" {
			query += " AND " + arg(filter.Object) + " = ANY(objects)"
		}
		if !filter.Since.IsZero() {
			query += " AND timestamp >= " + arg(filter.Since)
		}
	}
	query += " ORDER BY timestamp DESC"
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Timestamp, &a.Objects, &a.Prompt, &a.Message, &a.Fallback); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *announcements) GetStats(ctx context.Context) (*models.AnnouncementStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &models.AnnouncementStats{ObjectCounts: make(map[string]int)}
	if err := r.s.conn.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE fallback), COUNT(DISTINCT session_id) FROM announcements
	`).Scan(&stats.TotalAnnouncements, &stats.Fallbacks, &stats.Sessions); err != nil {
		return nil, err
	}

	rows, err := r.s.conn.Query(ctx, `
		SELECT obj, COUNT(*) AS cnt
		FROM announcements, UNNEST(objects) AS obj
		GROUP BY obj
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var obj string
		var count int
		if err := rows.Scan(&obj, &count); err != nil {
			return nil, err
		}
		stats.ObjectCounts[obj] = count
	}
	return stats, rows.Err()
}

type snapshots struct {
	s *Store
}

func (r *snapshots) Insert(ctx context.Context, snap *models.Snapshot) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var id int64
	err := r.s.conn.QueryRow(ctx, `
		INSERT INTO snapshots (announcement_id, filename, label, timestamp, filepath, filesize)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, snap.AnnouncementID, snap.Filename, snap.Label, snap.Timestamp, snap.FilePath, snap.FileSize).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id, nil
}

func (r *snapshots) GetAll(ctx context.Context, limit int) ([]models.Snapshot, error) {
	query := `SELECT id, announcement_id, filename, label, timestamp, filepath, filesize FROM snapshots ORDER BY timestamp DESC`
	if limit > 0 {
		return r.query(ctx, query+" LIMIT $1", limit)
	}
	return r.query(ctx, query)
}

func (r *snapshots) GetByAnnouncementID(ctx context.Context, announcementID string) ([]models.Snapshot, error) {
	return r.query(ctx, `
		SELECT id, announcement_id, filename, label, timestamp, filepath, filesize
		FROM snapshots WHERE announcement_id = $1 ORDER BY timestamp
	`, announcementID)
}

func (r *snapshots) GetDirectorySize(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var size int64
	if err := r.s.conn.QueryRow(ctx, `SELECT COALESCE(SUM(filesize), 0)::BIGINT FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to get snapshot size: %w", err)
	}
	return size, nil
}

func (r *snapshots) query(ctx context.Context, query string, args ...interface{}) ([]models.Snapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows, err := r.s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		if err := rows.Scan(&snap.ID, &snap.AnnouncementID, &snap.Filename, &snap.Label, &snap.Timestamp, &snap.FilePath, &snap.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
