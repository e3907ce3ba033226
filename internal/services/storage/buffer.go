// Package storage buffers annotated announcement frames and flushes them to
// disk periodically.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/repository"
)

type Image struct {
	Timestamp      time.Time
	AnnouncementID string
	Label          string
	Data           []byte
}

// BufferService keeps at most bufferLimit images in memory between flushes.
type BufferService struct {
	imagesDir   string
	images      []Image
	bufferLimit int
	repo        repository.SnapshotRepository
	logger      *logger.Logger
	now         func() time.Time
	mu          sync.Mutex
}

// NewBufferService creates a buffer. repo may be nil, in which case flushed
// files are not recorded in the journal.
func NewBufferService(imagesDir string, bufferLimit int, repo repository.SnapshotRepository, logger *logger.Logger) *BufferService {
	return &BufferService{
		imagesDir:   imagesDir,
		bufferLimit: bufferLimit,
		images:      make([]Image, 0, bufferLimit),
		repo:        repo,
		logger:      logger,
		now:         time.Now,
	}
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushImages(ctx)
		case <-ctx.Done():
			s.FlushImages(context.WithoutCancel(ctx))
			return
		}
	}
}

// AddImage implements services.Snapshotter. Images beyond the limit are dropped.
func (s *BufferService) AddImage(imageData []byte, announcementID, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.images) >= s.bufferLimit {
		s.logger.Warning("[SNAPSHOT] Buffer full (%d), dropping snapshot for %s", s.bufferLimit, announcementID)
		return
	}

	s.images = append(s.images, Image{
		Timestamp:      s.now(),
		AnnouncementID: announcementID,
		Label:          label,
		Data:           imageData,
	})
}

// FlushImages writes buffered images to disk and returns how many were saved.
func (s *BufferService) FlushImages(ctx context.Context) int {
	s.mu.Lock()
	images := s.images
	s.images = make([]Image, 0, s.bufferLimit)
	s.mu.Unlock()

	if len(images) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("[SNAPSHOT] Error creating directory: %v", err)
		return 0
	}

	saved := 0
	for _, image := range images {
		filename := fmt.Sprintf("%s_%s_%s.jpg", image.Timestamp.Format("2006-01-02_15-04-05"), image.Label, shortID(image.AnnouncementID))
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, image.Data, 0644); err != nil {
			s.logger.Error("[SNAPSHOT] Error saving image %s: %v", filename, err)
			continue
		}
		saved++

		if s.repo == nil {
			continue
		}
		snap := &models.Snapshot{
			AnnouncementID: image.AnnouncementID,
			Filename:       filename,
			Label:          image.Label,
			Timestamp:      image.Timestamp,
			FilePath:       fullpath,
			FileSize:       int64(len(image.Data)),
		}
		if _, err := s.repo.Insert(ctx, snap); err != nil {
			s.logger.Warning("[SNAPSHOT] Failed to record %s: %v", filename, err)
		}
	}

	s.logger.Info("[SNAPSHOT] Flushed %d images to disk", saved)
	return saved
}

func (s *BufferService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
