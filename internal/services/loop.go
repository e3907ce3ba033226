package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/services/announce"

	"github.com/google/uuid"
)

// LoopConfig holds the tunables of the detection loop.
type LoopConfig struct {
	SessionID   string
	QuitKey     int
	ReinitDelay time.Duration
}

// LoopStats counts what the loop has done so far.
type LoopStats struct {
	Frames         int64 `json:"frames"`
	Detections     int64 `json:"detections"`
	Skipped        int64 `json:"skipped"`
	DetectorErrors int64 `json:"detector_errors"`
	Announcements  int64 `json:"announcements"`
	Fallbacks      int64 `json:"fallbacks"`
	Reinits        int64 `json:"reinits"`
}

// Loop is the producer side: it reads frames, detects objects, evaluates the
// announcement policy and hands prompts to the narrator. It never waits on
// speech.
type Loop struct {
	source    VideoSource
	detector  Detector
	policy    *announce.Policy
	narrator  Narrator
	preview   Preview
	sinks     []AnnouncementSink
	snapshots Snapshotter
	progress  Progress
	logger    *logger.Logger

	sessionID   string
	quitKey     int
	reinitDelay time.Duration
	now         func() time.Time

	frames         atomic.Int64
	detections     atomic.Int64
	skipped        atomic.Int64
	detectorErrors atomic.Int64
	announcements  atomic.Int64
	fallbacks      atomic.Int64
	reinits        atomic.Int64

	lastMu sync.RWMutex
	last   *models.Announcement
}

func NewLoop(source VideoSource, detector Detector, policy *announce.Policy, narrator Narrator, preview Preview, cfg LoopConfig, logger *logger.Logger) *Loop {
	return &Loop{
		source:      source,
		detector:    detector,
		policy:      policy,
		narrator:    narrator,
		preview:     preview,
		logger:      logger,
		sessionID:   cfg.SessionID,
		quitKey:     cfg.QuitKey,
		reinitDelay: cfg.ReinitDelay,
		now:         time.Now,
	}
}

// AddSink registers a receiver for fired announcements.
func (l *Loop) AddSink(sink AnnouncementSink) {
	l.sinks = append(l.sinks, sink)
}

func (l *Loop) SetSnapshotter(s Snapshotter) {
	l.snapshots = s
}

func (l *Loop) SetProgress(p Progress) {
	l.progress = p
}

// Run iterates until the quit key is pressed, ctx is cancelled or a finite
// source is exhausted.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("[LOOP] Detection loop started (session %s)", l.sessionID)
	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("[LOOP] Context cancelled, stopping: %v", err)
			return nil
		}
		if stop := l.step(ctx); stop {
			return nil
		}
	}
}

// step runs one iteration and reports whether the loop should stop.
func (l *Loop) step(ctx context.Context) bool {
	frame, err := l.source.Read()
	if errors.Is(err, ErrEndOfStream) {
		l.logger.Info("[LOOP] End of stream after %d frames", l.frames.Load())
		return true
	}
	if err == nil && frame == nil {
		err = errors.New("empty frame")
	}
	if err != nil {
		l.logger.Warning("[LOOP] Failed to grab frame: %v. Reinitializing video capture...", err)
		l.reinit(ctx)
		return false
	}
	defer frame.Close()

	n := l.frames.Add(1)
	l.logger.Info("[LOOP] Processing frame #%d", n)

	objects, ok := l.detect(frame)
	if !ok {
		return false
	}

	now := l.now()
	if decision, fired := l.policy.Evaluate(now, objects); fired {
		l.announce(ctx, frame, decision, now)
	}

	if l.progress != nil {
		l.progress.Add(1)
	}

	return l.show(frame)
}

// reinit releases and reopens the source after a failed read.
func (l *Loop) reinit(ctx context.Context) {
	l.reinits.Add(1)
	if err := l.source.Release(); err != nil {
		l.logger.Warning("[LOOP] Error releasing video source: %v", err)
	}

	if l.reinitDelay > 0 {
		select {
		case <-time.After(l.reinitDelay):
		case <-ctx.Done():
			return
		}
	}

	if err := l.source.Open(); err != nil {
		l.logger.Error("[LOOP] Error reopening video source: %v", err)
	}
}

// detect runs the detector and interprets every result. ok is false when the
// detector itself failed; the frame then takes no part in the policy.
func (l *Loop) detect(frame Frame) (objects models.ObjectSet, ok bool) {
	raw, err := l.runDetector(frame)
	if err != nil {
		l.detectorErrors.Add(1)
		l.logger.Error("[LOOP] Detector failed on frame: %v", err)
		return objects, false
	}

	objects = models.NewObjectSet()
	for _, r := range raw {
		det, err := l.interpret(frame, r)
		if err != nil {
			l.skipped.Add(1)
			l.logger.Warning("[LOOP] Error processing a detection box: %v", err)
			continue
		}

		l.detections.Add(1)
		objects.Add(det.Label)
		if err := frame.DrawBox(det.Box, det.Caption()); err != nil {
			l.logger.Warning("[LOOP] Failed to draw %s: %v", det.Label, err)
		}
	}
	return objects, true
}

func (l *Loop) runDetector(frame Frame) (raw []models.RawDetection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return l.detector.Detect(frame)
}

func (l *Loop) interpret(frame Frame, raw models.RawDetection) (det models.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic interpreting class %d: %v", raw.ClassID, r)
		}
	}()

	size := frame.Size()
	bounds := image.Rect(0, 0, size.X, size.Y)
	if err := raw.Validate(bounds); err != nil {
		return det, err
	}

	label, err := l.detector.Label(raw.ClassID)
	if err != nil {
		return det, err
	}

	box := raw.Rect()
	if !bounds.Empty() {
		box = box.Intersect(bounds)
	}
	return models.Detection{Label: label, Confidence: raw.Confidence, Box: box}, nil
}

// announce narrates a fired decision and publishes the resulting record.
func (l *Loop) announce(ctx context.Context, frame Frame, decision announce.Decision, now time.Time) {
	l.logger.Info("[POLICY] New announcement: %s", decision.Prompt)

	res, err := l.narrator.Narrate(ctx, decision.Prompt)
	if err != nil {
		l.logger.Error("[LOOP] Failed to queue narration: %v", err)
	}

	a := models.Announcement{
		ID:        uuid.NewString(),
		SessionID: l.sessionID,
		Timestamp: now,
		Objects:   decision.Objects,
		Prompt:    decision.Prompt,
		Message:   res.Message,
		Fallback:  res.Fallback,
	}

	l.announcements.Add(1)
	if a.Fallback {
		l.fallbacks.Add(1)
	}
	l.lastMu.Lock()
	l.last = &a
	l.lastMu.Unlock()

	for _, sink := range l.sinks {
		if err := sink.Publish(ctx, a); err != nil {
			l.logger.Warning("[LOOP] Failed to publish announcement to %s: %v", sink.Name(), err)
		}
	}

	if l.snapshots != nil {
		data, err := frame.Encode()
		if err != nil {
			l.logger.Warning("[LOOP] Failed to encode snapshot: %v", err)
			return
		}
		l.snapshots.AddImage(data, a.ID, snapshotLabel(a.Objects))
	}
}

const maxSnapshotLabel = 64

// snapshotLabel names a snapshot after its objects, falling back to a count
// when the joined names would not fit in a file name.
func snapshotLabel(objects []string) string {
	if len(objects) == 0 {
		return "none"
	}
	label := strings.ReplaceAll(strings.Join(objects, "_"), " ", "-")
	if len(label) > maxSnapshotLabel {
		return fmt.Sprintf("%d_objects", len(objects))
	}
	return label
}

// show displays the frame and reports whether the quit key was pressed.
func (l *Loop) show(frame Frame) bool {
	if l.preview == nil {
		return false
	}
	if err := l.preview.Show(frame); err != nil {
		l.logger.Warning("[LOOP] Failed to show frame: %v", err)
	}
	if key := l.preview.PollKey(); key >= 0 && key == l.quitKey {
		l.logger.Info("[LOOP] Quit key pressed. Exiting loop.")
		return true
	}
	return false
}

func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Frames:         l.frames.Load(),
		Detections:     l.detections.Load(),
		Skipped:        l.skipped.Load(),
		DetectorErrors: l.detectorErrors.Load(),
		Announcements:  l.announcements.Load(),
		Fallbacks:      l.fallbacks.Load(),
		Reinits:        l.reinits.Load(),
	}
}

// LastAnnouncement returns a copy of the most recent announcement, or nil.
func (l *Loop) LastAnnouncement() *models.Announcement {
	l.lastMu.RLock()
	defer l.lastMu.RUnlock()
	if l.last == nil {
		return nil
	}
	a := *l.last
	return &a
}
