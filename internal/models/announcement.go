package models

import "time"

// Announcement represents one fired narration, as journaled and broadcast.
type Announcement struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Objects   []string  `json:"objects"`
	Prompt    string    `json:"prompt"`
	Message   string    `json:"message"`
	Fallback  bool      `json:"fallback"` // Message is the prompt verbatim
}

// AnnouncementFilter contains filtering options for querying the journal.
type AnnouncementFilter struct {
	SessionID string
	Object    string
	Since     time.Time
	Limit     int
}

// AnnouncementStats contains statistics about journaled announcements.
type AnnouncementStats struct {
	TotalAnnouncements int            `json:"total_announcements"`
	Fallbacks          int            `json:"fallbacks"`
	Sessions           int            `json:"sessions"`
	ObjectCounts       map[string]int `json:"object_counts"`
}

// Snapshot is the annotated frame saved for an announcement.
type Snapshot struct {
	ID             int64     `json:"id"`
	AnnouncementID string    `json:"announcement_id"`
	Filename       string    `json:"filename"`
	Label          string    `json:"label"`
	Timestamp      time.Time `json:"timestamp"`
	FilePath       string    `json:"-"`
	FileSize       int64     `json:"file_size"`
}
