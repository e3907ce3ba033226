package handlers

import (
	"net/http"

	"echopath/internal/logger"
	"echopath/internal/services"
)

// StatusProvider reports the live state of the pipeline.
type StatusProvider interface {
	Status() services.Status
}

// StatusHandler returns loop, queue and worker counters.
func StatusHandler(provider StatusProvider, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, provider.Status())
	}
}
