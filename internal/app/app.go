package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"echopath/internal/config"
	"echopath/internal/journal"
	"echopath/internal/labels"
	"echopath/internal/logger"
	"echopath/internal/repository"
	"echopath/internal/routes"
	"echopath/internal/services"
	"echopath/internal/services/announce"
	"echopath/internal/services/capture"
	"echopath/internal/services/mqtt"
	"echopath/internal/services/narration"
	"echopath/internal/services/preview"
	"echopath/internal/services/speech"
	"echopath/internal/services/storage"
	"echopath/internal/services/vision"
	"echopath/internal/services/websocket"
)

const shutdownTimeout = 5 * time.Second

// App wires one session: the detection loop, the speech worker and the
// optional journal, feed, MQTT and snapshot outputs.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	sessionID string

	detector *vision.Detector
	source   *capture.Source
	journal  repository.Journal
	hub      *websocket.HubService
	buffer   *storage.BufferService
	mqtt     *mqtt.Publisher
	manager  *services.Manager
}

// NewApp builds every component from cfg. Nothing is opened or started
// except the model, the journal and the MQTT connection.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger, sessionID string) (*App, error) {
	a := &App{config: cfg, logger: log, sessionID: sessionID}

	table, err := labels.Load(cfg.LabelsPath, cfg.LabelOffset)
	if err != nil {
		return nil, err
	}

	a.detector, err = vision.NewDetector(vision.Options{
		ModelPath:  cfg.ModelPath,
		ConfigPath: cfg.ModelConfigPath,
		Format:     cfg.ModelFormat,
		InputSize:  cfg.ModelInputSize,
		Threshold:  cfg.DetectionThreshold,
		NMS:        cfg.NMSThreshold,
		Labels:     table,
	}, log)
	if err != nil {
		return nil, err
	}

	synth, err := speech.New(cfg.SpeechEngine, cfg.SpeechVoice, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	queue := speech.NewQueue(cfg.QueueLimit)
	worker := speech.NewWorker(queue, synth, cfg.SpeechTimeout, log)

	summarizer, err := narration.New(cfg.SummarizerBackend, cfg.SummarizerModel, cfg.SummarizerURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	narrator := narration.NewNarrator(summarizer, queue, cfg.SummarizerPersona, cfg.SummarizerTimeout, log)

	a.source = capture.NewSource(cfg.VideoSource, cfg.VideoAPI)
	policy := announce.NewPolicy(cfg.AnnouncementInterval, time.Now())

	loop := services.NewLoop(a.source, a.detector, policy, narrator, preview.New(cfg.Preview), services.LoopConfig{
		SessionID:   sessionID,
		QuitKey:     cfg.QuitKeyCode(),
		ReinitDelay: cfg.ReinitDelay,
	}, log)

	if err := a.wireOutputs(ctx, loop); err != nil {
		a.Close()
		return nil, err
	}

	a.manager = services.NewManager(loop, queue, worker, log)

	log.Info("[MAIN] Session %s: source=%s model=%s summarizer=%s speech=%s",
		sessionID, cfg.VideoSource, cfg.ModelPath, summarizer.Name(), synth.Name())
	return a, nil
}

// wireOutputs attaches the journal, feed, MQTT and snapshot sinks enabled
// in the configuration.
func (a *App) wireOutputs(ctx context.Context, loop *services.Loop) error {
	cfg := a.config

	if cfg.JournalDSN != "" {
		j, err := journal.Open(ctx, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		loop.AddSink(journal.NewSink(j.Announcements()))
		a.logger.Info("[MAIN] Journal: %s", j.Backend())
	}

	if cfg.MonitorAddr != "" {
		a.hub = websocket.NewHubService(a.logger)
		loop.AddSink(a.hub)
	}

	if cfg.MQTTBroker != "" {
		p, err := mqtt.Connect(cfg.MQTTBroker, cfg.InstanceID+"-"+a.sessionID, cfg.MQTTTopic, byte(cfg.MQTTQoS), a.logger)
		if err != nil {
			a.logger.Warning("[MQTT] Announcements will not be published: %v", err)
		} else {
			a.mqtt = p
			loop.AddSink(p)
		}
	}

	if cfg.SnapshotDirectory != "" {
		var repo repository.SnapshotRepository
		if a.journal != nil {
			repo = a.journal.Snapshots()
		}
		a.buffer = storage.NewBufferService(cfg.SnapshotDirectory, cfg.SnapshotLimit, repo, a.logger)
		loop.SetSnapshotter(a.buffer)
	}
	return nil
}

func (a *App) Manager() *services.Manager {
	return a.manager
}

func (a *App) Source() *capture.Source {
	return a.source
}

// Run starts the background services and supervises the session until it
// ends. Background services are stopped after the speech worker has
// finished.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup

	if a.hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hub.Run(bgCtx)
		}()
	}
	if a.buffer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.buffer.Run(bgCtx, a.config.SnapshotFlushInterval)
		}()
	}

	var server *http.Server
	if a.config.MonitorAddr != "" {
		router := routes.SetupRoutes(routes.Deps{
			Status:      a.manager,
			Hub:         a.hub,
			Journal:     a.journal,
			SnapshotDir: a.config.SnapshotDirectory,
			Token:       a.config.MonitorToken,
		}, a.logger)
		server = &http.Server{Addr: a.config.MonitorAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			a.logger.Info("[MONITOR] Listening on http://%s", a.config.MonitorAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("[MONITOR] Server failed: %v", err)
			}
		}()
	}

	err := a.manager.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			a.logger.Warning("[MONITOR] Shutdown: %v", serr)
		}
		cancel()
	}
	stop()
	wg.Wait()

	return err
}

// Close releases the model, the journal and the MQTT connection.
func (a *App) Close() {
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warning("[MAIN] Failed to close journal: %v", err)
		}
	}
	if a.detector != nil {
		a.detector.Close()
	}
}
