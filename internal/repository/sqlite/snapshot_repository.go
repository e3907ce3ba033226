package sqlite

import (
	"context"
	"fmt"

	"echopath/internal/models"
	"echopath/internal/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(ctx context.Context, s *models.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO snapshots (announcement_id, filename, label, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.AnnouncementID, s.Filename, s.Label, s.Timestamp.UTC(), s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return result.LastInsertId()
}

// GetAll returns the newest snapshots first. limit <= 0 returns all.
func (r *SnapshotRepository) GetAll(ctx context.Context, limit int) ([]models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT id, announcement_id, filename, label, timestamp, filepath, filesize FROM snapshots ORDER BY timestamp DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *SnapshotRepository) GetByAnnouncementID(ctx context.Context, announcementID string) ([]models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.query(ctx, `
		SELECT id, announcement_id, filename, label, timestamp, filepath, filesize
		FROM snapshots WHERE announcement_id = ? ORDER BY timestamp
	`, announcementID)
}

// GetDirectorySize returns the total size of all stored snapshots.
func (r *SnapshotRepository) GetDirectorySize(ctx context.Context) (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to get snapshot size: %w", err)
	}
	return size, nil
}

func (r *SnapshotRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Snapshot, error) {
	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.AnnouncementID, &s.Filename, &s.Label, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
