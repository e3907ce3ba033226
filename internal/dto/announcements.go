// Package dto holds the payloads served by the monitor API.
package dto

import (
	"encoding/json"
	"time"

	"echopath/internal/models"
)

// AnnouncementList is the response of the journal listing endpoint.
type AnnouncementList struct {
	Announcements []models.Announcement `json:"announcements"`
	Length        int                   `json:"length"`
	Limit         int                   `json:"pageSize"`
}

// SnapshotInfo represents a saved announcement frame.
type SnapshotInfo struct {
	Name           string    `json:"name"`
	AnnouncementID string    `json:"announcementId"`
	Date           time.Time `json:"date"`
	TimeOfDay      time.Time `json:"timeOfDay"`
	Objects        []string  `json:"objects"`
	Size           int64     `json:"size"`
}

// MarshalJSON customizes JSON output for SnapshotInfo to format date and time-of-day.
func (s SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      s.Date.Format("02-01-2006"),
		TimeOfDay: s.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(s),
	})
}

// SnapshotsData is the response of the snapshot listing endpoint.
type SnapshotsData struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
	Size      int64          `json:"size"`
	Length    int            `json:"length"`
}
