package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"echopath/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "journal", "echopath.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB) time.Time {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	records := []models.Announcement{
		{ID: "a1", SessionID: "s1", Timestamp: base, Objects: []string{"person"}, Prompt: "Objects detected: person.", Message: "A person is ahead."},
		{ID: "a2", SessionID: "s1", Timestamp: base.Add(5 * time.Second), Objects: []string{"chair", "person"}, Prompt: "Objects detected: chair, person.", Message: "Objects detected: chair, person.", Fallback: true},
		{ID: "a3", SessionID: "s2", Timestamp: base.Add(10 * time.Second), Objects: nil, Prompt: "No objects detected.", Message: "The path is clear."},
	}
	for i := range records {
		if err := db.Announcements().Insert(ctx, &records[i]); err != nil {
			t.Fatalf("Insert(%s) failed: %v", records[i].ID, err)
		}
	}
	return base
}

func TestAnnouncementRepository_InsertAndGet(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	a, err := db.Announcements().GetByID(context.Background(), "a2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if a == nil || !a.Fallback || len(a.Objects) != 2 || a.Objects[0] != "chair" {
		t.Errorf("Unexpected announcement %+v", a)
	}

	missing, err := db.Announcements().GetByID(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for missing id, got %+v, %v", missing, err)
	}
}

func TestAnnouncementRepository_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	dup := &models.Announcement{ID: "a1", SessionID: "s1", Timestamp: time.Now(), Prompt: "x", Message: "x"}
	if err := db.Announcements().Insert(context.Background(), dup); err == nil {
		t.Error("Expected error inserting a duplicate id")
	}
}

func TestAnnouncementRepository_GetAllFilters(t *testing.T) {
	db := newTestDB(t)
	base := seed(t, db)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter *models.AnnouncementFilter
		want   []string
	}{
		{"all newest first", nil, []string{"a3", "a2", "a1"}},
		{"by session", &models.AnnouncementFilter{SessionID: "s1"}, []string{"a2", "a1"}},
		{"by object", &models.AnnouncementFilter{Object: "chair"}, []string{"a2"}},
		{"since", &models.AnnouncementFilter{Since: base.Add(time.Second)}, []string{"a3", "a2"}},
		{"limit", &models.AnnouncementFilter{Limit: 1}, []string{"a3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Announcements().GetAll(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d announcements, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, expected %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestAnnouncementRepository_EmptyObjectsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	a, _ := db.Announcements().GetByID(context.Background(), "a3")
	if a == nil || a.Objects == nil || len(a.Objects) != 0 {
		t.Errorf("Expected empty, non-nil objects, got %#v", a)
	}
}

func TestAnnouncementRepository_GetStats(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	stats, err := db.Announcements().GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalAnnouncements != 3 || stats.Fallbacks != 1 || stats.Sessions != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.ObjectCounts["person"] != 2 || stats.ObjectCounts["chair"] != 1 {
		t.Errorf("Unexpected object counts %v", stats.ObjectCounts)
	}
}

func TestSnapshotRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2"} {
		s := &models.Snapshot{
			AnnouncementID: id,
			Filename:       id + ".jpg",
			Label:          "person",
			Timestamp:      base.Add(time.Duration(i) * time.Second),
			FilePath:       "/tmp/" + id + ".jpg",
			FileSize:       100,
		}
		if _, err := db.Snapshots().Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := db.Snapshots().GetAll(ctx, 0)
	if err != nil || len(all) != 2 || all[0].AnnouncementID != "a2" {
		t.Errorf("Unexpected snapshots %+v, %v", all, err)
	}

	byID, err := db.Snapshots().GetByAnnouncementID(ctx, "a1")
	if err != nil || len(byID) != 1 {
		t.Errorf("Expected one snapshot for a1, got %+v, %v", byID, err)
	}

	size, err := db.Snapshots().GetDirectorySize(ctx)
	if err != nil || size != 200 {
		t.Errorf("Expected size 200, got %d, %v", size, err)
	}
}

func TestNew_InMemory(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) failed: %v", err)
	}
	defer db.Close()

	if db.Backend() != "sqlite" {
		t.Errorf("Unexpected backend %s", db.Backend())
	}
}
