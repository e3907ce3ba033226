package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/services/speech"
)

// Status is the point-in-time view served by the monitor.
type Status struct {
	SessionID        string               `json:"session_id"`
	StartedAt        time.Time            `json:"started_at"`
	Running          bool                 `json:"running"`
	Worker           speech.WorkerStats   `json:"worker"`
	Queue            speech.QueueStats    `json:"queue"`
	Loop             LoopStats            `json:"loop"`
	LastAnnouncement *models.Announcement `json:"last_announcement,omitempty"`
}

// Manager supervises one session: it starts the speech worker, opens the
// source, runs the loop and always tears everything down in order.
type Manager struct {
	loop      *Loop
	queue     *speech.Queue
	worker    *speech.Worker
	logger    *logger.Logger
	startedAt time.Time
	running   chan struct{}
}

func NewManager(loop *Loop, queue *speech.Queue, worker *speech.Worker, logger *logger.Logger) *Manager {
	return &Manager{
		loop:    loop,
		queue:   queue,
		worker:  worker,
		logger:  logger,
		running: make(chan struct{}),
	}
}

// Run blocks until the session ends. A failed open is returned after cleanup;
// a panic in the loop is logged with its stack and returned as an error.
func (m *Manager) Run(ctx context.Context) (err error) {
	m.logger.Info("[MAIN] Starting application.")

	m.worker.Start()
	m.logger.Info("[MAIN] TTS worker started.")

	defer m.cleanup()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("[MAIN] Exception in main loop: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("main loop panic: %v", r)
		}
	}()

	if err := m.loop.source.Open(); err != nil {
		m.logger.Error("[MAIN] Error: Could not open the video source: %v", err)
		return fmt.Errorf("open video source: %w", err)
	}
	m.logger.Info("[MAIN] Video capture opened successfully.")

	m.startedAt = time.Now()
	close(m.running)
	return m.loop.Run(ctx)
}

// cleanup runs on every exit path. Each step is isolated so a failure in one
// does not skip the rest; the worker is joined last.
func (m *Manager) cleanup() {
	m.logger.Info("[MAIN] Cleaning up resources...")

	m.safely("release video source", m.loop.source.Release)
	if m.loop.preview != nil {
		m.safely("close preview", m.loop.preview.Close)
	}
	m.safely("signal TTS worker", func() error {
		m.queue.Close()
		return nil
	})

	<-m.worker.Done()
	m.logger.Info("[MAIN] TTS worker terminated. Application terminated.")
}

func (m *Manager) safely(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("[MAIN] Panic during %s: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		m.logger.Warning("[MAIN] Failed to %s: %v", what, err)
	}
}

// Status is safe to call from any goroutine, before, during or after Run.
func (m *Manager) Status() Status {
	var (
		running   bool
		startedAt time.Time
	)
	select {
	case <-m.running:
		startedAt = m.startedAt
		running = m.worker.Status() != speech.StatusTerminated
	default:
	}

	return Status{
		SessionID:        m.loop.sessionID,
		StartedAt:        startedAt,
		Running:          running,
		Worker:           m.worker.Stats(),
		Queue:            m.queue.Stats(),
		Loop:             m.loop.Stats(),
		LastAnnouncement: m.loop.LastAnnouncement(),
	}
}

func (m *Manager) Loop() *Loop {
	return m.loop
}
