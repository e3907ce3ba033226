package repository

import (
	"context"

	"echopath/internal/models"
)

// AnnouncementRepository defines the journal operations for announcements.
type AnnouncementRepository interface {
	// Create operations
	Insert(ctx context.Context, a *models.Announcement) error

	// Read operations
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	GetAll(ctx context.Context, filter *models.AnnouncementFilter) ([]models.Announcement, error)
	GetStats(ctx context.Context) (*models.AnnouncementStats, error)
}

// SnapshotRepository defines the operations for saved announcement frames.
type SnapshotRepository interface {
	Insert(ctx context.Context, s *models.Snapshot) (int64, error)
	GetAll(ctx context.Context, limit int) ([]models.Snapshot, error)
	GetByAnnouncementID(ctx context.Context, announcementID string) ([]models.Snapshot, error)
	GetDirectorySize(ctx context.Context) (int64, error)
}

// Journal bundles the repositories of one storage backend.
type Journal interface {
	Announcements() AnnouncementRepository
	Snapshots() SnapshotRepository
	Backend() string
	Close() error
}
