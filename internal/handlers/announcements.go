package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"echopath/internal/dto"
	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/repository"
)

const defaultListLimit = 50

// atoiDefault converts a query value to a positive int, falling back to def.
func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// ParseAnnouncementFilter reads session, object, since (RFC3339) and limit
// from the query string.
func ParseAnnouncementFilter(r *http.Request) (*models.AnnouncementFilter, error) {
	q := r.URL.Query()
	filter := &models.AnnouncementFilter{
		SessionID: q.Get("session"),
		Object:    strings.TrimSpace(q.Get("object")),
		Limit:     atoiDefault(q.Get("limit"), defaultListLimit),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, err
		}
		filter.Since = t
	}
	return filter, nil
}

// GetAnnouncementsHandler lists journaled announcements, newest first.
func GetAnnouncementsHandler(repo repository.AnnouncementRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := ParseAnnouncementFilter(r)
		if err != nil {
			http.Error(w, "Invalid since parameter, expected RFC3339", http.StatusBadRequest)
			return
		}

		announcements, err := repo.GetAll(r.Context(), filter)
		if err != nil {
			logger.Error("[MONITOR] Failed to query journal: %v", err)
			http.Error(w, "Failed to query journal", http.StatusInternalServerError)
			return
		}
		if announcements == nil {
			announcements = []models.Announcement{}
		}

		writeJSON(w, logger, dto.AnnouncementList{
			Announcements: announcements,
			Length:        len(announcements),
			Limit:         filter.Limit,
		})
	}
}

// GetAnnouncementHandler returns one announcement by ?id=.
func GetAnnouncementHandler(repo repository.AnnouncementRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id parameter", http.StatusBadRequest)
			return
		}

		a, err := repo.GetByID(r.Context(), id)
		if err != nil {
			logger.Error("[MONITOR] Failed to get announcement %s: %v", id, err)
			http.Error(w, "Failed to query journal", http.StatusInternalServerError)
			return
		}
		if a == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, a)
	}
}

// GetAnnouncementStatsHandler returns journal statistics.
func GetAnnouncementStatsHandler(repo repository.AnnouncementRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.GetStats(r.Context())
		if err != nil {
			logger.Error("[MONITOR] Failed to get journal stats: %v", err)
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats)
	}
}

// GetSnapshotsHandler lists saved frames, optionally for one ?announcement=.
func GetSnapshotsHandler(repo repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var (
			snapshots []models.Snapshot
			err       error
		)
		if id := q.Get("announcement"); id != "" {
			snapshots, err = repo.GetByAnnouncementID(ctx, id)
		} else {
			snapshots, err = repo.GetAll(ctx, atoiDefault(q.Get("limit"), defaultListLimit))
		}
		if err != nil {
			logger.Error("[MONITOR] Failed to query snapshots: %v", err)
			http.Error(w, "Failed to query snapshots", http.StatusInternalServerError)
			return
		}

		size, err := repo.GetDirectorySize(ctx)
		if err != nil {
			logger.Warning("[MONITOR] Failed to get snapshot size: %v", err)
		}

		infos := make([]dto.SnapshotInfo, 0, len(snapshots))
		for _, s := range snapshots {
			infos = append(infos, dto.SnapshotInfo{
				Name:           s.Filename,
				AnnouncementID: s.AnnouncementID,
				Date:           s.Timestamp,
				TimeOfDay:      s.Timestamp,
				Objects:        strings.Split(s.Label, "_"),
				Size:           s.FileSize,
			})
		}

		writeJSON(w, logger, dto.SnapshotsData{Snapshots: infos, Size: size, Length: len(infos)})
	}
}

// ViewSnapshotHandler serves one saved frame by ?name= from dir.
func ViewSnapshotHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" || name != filepath.Base(name) {
			http.Error(w, "Invalid snapshot name", http.StatusBadRequest)
			return
		}

		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("[MONITOR] Error encoding JSON response: %v", err)
	}
}
