package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"echopath/internal/models"
	"echopath/internal/repository"
)

var _ repository.AnnouncementRepository = (*AnnouncementRepository)(nil)

// AnnouncementRepository implements repository.AnnouncementRepository for SQLite.
type AnnouncementRepository struct {
	db *DB
}

func NewAnnouncementRepository(db *DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Insert stores the announcement and one row per object in a single transaction.
func (r *AnnouncementRepository) Insert(ctx context.Context, a *models.Announcement) error {
	r.db.Lock()
	defer r.db.Unlock()

	objects, err := json.Marshal(nonNil(a.Objects))
	if err != nil {
		return fmt.Errorf("failed to encode objects: %w", err)
	}

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO announcements (id, session_id, timestamp, objects, prompt, message, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.Timestamp.UTC(), string(objects), a.Prompt, a.Message, a.Fallback); err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO announcement_objects (announcement_id, object_name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obj := range a.Objects {
		if _, err := stmt.ExecContext(ctx, a.ID, obj); err != nil {
			return fmt.Errorf("failed to insert object: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves an announcement by its ID. It returns nil when not found.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, session_id, timestamp, objects, prompt, message, fallback
		FROM announcements WHERE id = ?
	`, id)

	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return a, nil
}

// GetAll retrieves announcements, newest first, based on filter criteria.
func (r *AnnouncementRepository) GetAll(ctx context.Context, filter *models.AnnouncementFilter) ([]models.Announcement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT a.id, a.session_id, a.timestamp, a.objects, a.prompt, a.message, a.fallback
		FROM announcements a
		WHERE 1=1
	`
	args := []interface{}{}

	if filter != nil {
		if filter.SessionID != "" {
			query += " AND a.session_id = ?"
			args = append(args, filter.SessionID)
		}
		if filter.Object != "" {
			query += " AND EXISTS (SELECT 1 FROM announcement_objects o WHERE o.announcement_id = a.id AND o.object_name = ?)"
			args = append(args, filter.Object)
		}
		if !filter.Since.IsZero() {
			query += " AND a.timestamp >= ?"
			args = append(args, filter.Since.UTC())
		}
	}

	query += " ORDER BY a.timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var announcements []models.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, *a)
	}
	return announcements, rows.Err()
}

// GetStats returns statistics about journaled announcements.
func (r *AnnouncementRepository) GetStats(ctx context.Context) (*models.AnnouncementStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.AnnouncementStats{ObjectCounts: make(map[string]int)}

	if err := r.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(fallback), 0), COUNT(DISTINCT session_id) FROM announcements
	`).Scan(&stats.TotalAnnouncements, &stats.Fallbacks, &stats.Sessions); err != nil {
		return nil, err
	}

	// Most announced objects
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT object_name, COUNT(*) as cnt
		FROM announcement_objects
		GROUP BY object_name
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnnouncement(s scanner) (*models.Announcement, error) {
	var a models.Announcement
	var objects string
	if err := s.Scan(&a.ID, &a.SessionID, &a.Timestamp, &objects, &a.Prompt, &a.Message, &a.Fallback); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(objects), &a.Objects); err != nil {
		return nil, fmt.Errorf("invalid objects column: %w", err)
	}
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
