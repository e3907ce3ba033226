package routes

import (
	"net/http"

	"echopath/internal/handlers"
	"echopath/internal/logger"
	"echopath/internal/middleware"
	"echopath/internal/repository"
	"echopath/internal/services/websocket"
)

// Deps are the read-only views the monitor serves. Nil members disable
// their endpoints.
type Deps struct {
	Status      handlers.StatusProvider
	Hub         *websocket.HubService
	Journal     repository.Journal
	SnapshotDir string
	Token       string
}

// SetupRoutes registers the monitor API endpoints and wraps the mux with
// the token middleware.
func SetupRoutes(deps Deps, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	if deps.Status != nil {
		mux.HandleFunc("/api/status", handlers.StatusHandler(deps.Status, log))
	}
	if deps.Hub != nil {
		mux.HandleFunc("/api/feed", handlers.FeedWebsocketHandler(deps.Hub, log))
	}

	if deps.Journal != nil {
		announcements := deps.Journal.Announcements()
		mux.HandleFunc("/api/announcements", handlers.GetAnnouncementsHandler(announcements, log))
		mux.HandleFunc("/api/announcements/view", handlers.GetAnnouncementHandler(announcements, log))
		mux.HandleFunc("/api/announcements/stats", handlers.GetAnnouncementStatsHandler(announcements, log))
		mux.HandleFunc("/api/snapshots", handlers.GetSnapshotsHandler(deps.Journal.Snapshots(), log))
	}
	if deps.SnapshotDir != "" {
		mux.HandleFunc("/api/snapshots/view", handlers.ViewSnapshotHandler(deps.SnapshotDir))
	}

	// Log endpoints
	for _, file := range []string{logger.InfoFile, logger.WarningFile, logger.ErrorFile} {
		level := file[:len(file)-len(".log")]
		mux.HandleFunc("/logs/"+level, handlers.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+level+"/clear", handlers.ClearLogsHandler(log, file))
	}

	return middleware.TokenMiddleware(deps.Token, mux)
}
