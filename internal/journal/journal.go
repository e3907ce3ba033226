// Package journal opens the announcement journal and adapts it to the
// detection loop's sink interface.
package journal

import (
	"context"
	"strings"

	"echopath/internal/models"
	"echopath/internal/repository"
	"echopath/internal/repository/postgres"
	"echopath/internal/repository/sqlite"
	"echopath/internal/services"
)

// Open selects the backend from the DSN: postgres:// or postgresql:// URLs
// use PostgreSQL, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (repository.Journal, error) {
	if IsPostgres(dsn) {
		return postgres.New(ctx, dsn)
	}
	return sqlite.New(dsn)
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

var _ services.AnnouncementSink = (*Sink)(nil)

// Sink writes every announcement to the journal.
type Sink struct {
	repo repository.AnnouncementRepository
}

func NewSink(repo repository.AnnouncementRepository) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Name() string {
	return "journal"
}

func (s *Sink) Publish(ctx context.Context, a models.Announcement) error {
	// The loop's context may already be cancelled during the final frame.
	return s.repo.Insert(context.WithoutCancel(ctx), &a)
}
