package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"echopath/internal/models"
	"echopath/internal/repository/sqlite"
)

func TestCopyJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, err := sqlite.New(filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	defer src.Close()
	dst, err := sqlite.New(filepath.Join(dir, "dst.db"))
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}
	defer dst.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, a := range []models.Announcement{
		{ID: "a1", SessionID: "s1", Timestamp: ts, Objects: []string{"person"}, Message: "A person ahead."},
		{ID: "a2", SessionID: "s1", Timestamp: ts.Add(time.Second), Objects: []string{"dog"}, Message: "A dog."},
	} {
		if err := src.Announcements().Insert(ctx, &a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := src.Snapshots().Insert(ctx, &models.Snapshot{AnnouncementID: "a1", Filename: "a1.jpg", Label: "person", Timestamp: ts, FileSize: 3}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	// Already present in the destination.
	if err := dst.Announcements().Insert(ctx, &models.Announcement{ID: "a2", SessionID: "s1", Timestamp: ts, Objects: []string{"dog"}}); err != nil {
		t.Fatalf("seed dst: %v", err)
	}

	result, err := copyJournal(ctx, src, dst, nil)
	if err != nil {
		t.Fatalf("copyJournal failed: %v", err)
	}
	if result.Announcements != 1 || result.Skipped != 1 || result.Snapshots != 1 {
		t.Errorf("Unexpected result %+v", result)
	}

	stats, err := dst.Announcements().GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalAnnouncements != 2 {
		t.Errorf("Expected 2 announcements in destination, got %d", stats.TotalAnnouncements)
	}

	// A second run copies nothing.
	again, err := copyJournal(ctx, src, dst, nil)
	if err != nil {
		t.Fatalf("second copyJournal failed: %v", err)
	}
	if again.Announcements != 0 || again.Skipped != 2 {
		t.Errorf("Expected idempotent rerun, got %+v", again)
	}
}
