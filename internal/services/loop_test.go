package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/services/announce"
)

var names = map[int]string{0: "person", 1: "chair", 2: "dog"}

// newTestLoop builds a loop whose clock advances one second per reading.
func newTestLoop(src *fakeSource, narr *fakeNarrator, preview Preview) *Loop {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	policy := announce.NewPolicy(3*time.Second, start)
	l := NewLoop(src, &fakeDetector{source: src, names: names}, policy, narr, preview,
		LoopConfig{SessionID: "test", QuitKey: 'q'}, logger.Discard())

	tick := 0
	l.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}
	return l
}

func TestLoop_EndOfStreamStopsNormally(t *testing.T) {
	src := &fakeSource{script: []read{{}, {}}}
	l := newTestLoop(src, &fakeNarrator{}, &fakePreview{})

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := l.Stats().Frames; got != 2 {
		t.Errorf("Expected 2 frames, got %d", got)
	}
	for i, f := range src.frames {
		if !f.closed {
			t.Errorf("Frame %d was not closed", i)
		}
	}
}

func TestLoop_ReadFailureReinitializesOnce(t *testing.T) {
	src := &fakeSource{script: []read{{}, {err: errors.New("stream dropped")}, {}}}
	l := newTestLoop(src, &fakeNarrator{}, &fakePreview{})

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if got := l.Stats().Reinits; got != 1 {
		t.Errorf("Expected exactly one reinit, got %d", got)
	}
	if src.releases != 1 || src.opens != 1 {
		t.Errorf("Expected one release and one reopen, got %d releases and %d opens", src.releases, src.opens)
	}
	if got := l.Stats().Frames; got != 2 {
		t.Errorf("No detection should run on the failed iteration, got %d frames", got)
	}
}

func TestLoop_PerDetectionBoundary(t *testing.T) {
	src := &fakeSource{script: []read{{detections: []models.RawDetection{
		box(0, 0.9),
		box(7, 0.9), // unknown class
		{ClassID: 1, Confidence: 1.7, X1: 0, Y1: 0, X2: 5, Y2: 5},    // bad confidence
		{ClassID: 1, Confidence: 0.8, X1: 50, Y1: 50, X2: 50, Y2: 9}, // degenerate box
		box(2, 0.6),
	}}}}
	narr := &fakeNarrator{}
	l := newTestLoop(src, narr, &fakePreview{})

	l.Run(context.Background())

	stats := l.Stats()
	if stats.Detections != 2 || stats.Skipped != 3 {
		t.Errorf("Expected 2 detections and 3 skipped, got %+v", stats)
	}
	frame := src.frames[0]
	if len(frame.boxes) != 2 || frame.boxes[0] != "person 0.90" || frame.boxes[1] != "dog 0.60" {
		t.Errorf("Unexpected overlays %v", frame.boxes)
	}
}

func TestLoop_DetectorPanicSkipsFrame(t *testing.T) {
	src := &fakeSource{script: []read{{panics: true}, {detections: []models.RawDetection{box(0, 0.9)}}}}
	narr := &fakeNarrator{}
	preview := &fakePreview{}
	l := newTestLoop(src, narr, preview)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := l.Stats().DetectorErrors; got != 1 {
		t.Errorf("Expected one detector error, got %d", got)
	}
	if !src.frames[0].closed {
		t.Error("Frame of the failed iteration must be closed")
	}
	if preview.shown != 1 {
		t.Errorf("Expected only the healthy frame to be shown, got %d", preview.shown)
	}
}

func TestLoop_DetectorErrorDoesNotPollQuitKey(t *testing.T) {
	// The only key press would stop the loop if the failed frame polled it.
	src := &fakeSource{script: []read{
		{panics: true},
		{detections: []models.RawDetection{box(0, 0.9)}},
		{detections: []models.RawDetection{box(0, 0.9)}},
	}}
	preview := &fakePreview{keys: []int{'q'}}
	l := newTestLoop(src, &fakeNarrator{}, preview)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := l.Stats().Frames; got != 2 {
		t.Errorf("Expected the quit key to stop the loop after frame 2, got %d frames", got)
	}
	if preview.shown != 1 {
		t.Errorf("Expected one frame shown before quitting, got %d", preview.shown)
	}
}

func TestSnapshotLabel(t *testing.T) {
	many := make([]string, 20)
	for i := range many {
		many[i] = "motorcycle"
	}

	tests := []struct {
		name    string
		objects []string
		want    string
	}{
		{"empty", nil, "none"},
		{"single", []string{"person"}, "person"},
		{"joined", []string{"chair", "person"}, "chair_person"},
		{"spaces replaced", []string{"stop sign", "traffic light"}, "stop-sign_traffic-light"},
		{"too long", many, "20_objects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snapshotLabel(tt.objects); got != tt.want {
				t.Errorf("snapshotLabel(%v) = %q, want %q", tt.objects, got, tt.want)
			}
		})
	}
}

func TestLoop_AnnouncesChangedSets(t *testing.T) {
	person := []models.RawDetection{box(0, 0.9)}
	both := []models.RawDetection{box(0, 0.9), box(1, 0.8)}

	// Clock: 1s per policy evaluation, interval 3s.
	src := &fakeSource{script: []read{
		{detections: person}, // t=1 suppressed
		{detections: person}, // t=2 suppressed
		{detections: person}, // t=3 boundary, suppressed
		{detections: person}, // t=4 fires
		{detections: person}, // t=5 unchanged
		{detections: both},   // t=6 inside interval
		{detections: both},   // t=7 inside interval
		{detections: both},   // t=8 fires
	}}
	narr := &fakeNarrator{}
	sink := &fakeSink{err: errors.New("broker down")}
	snaps := &fakeSnapshots{}
	l := newTestLoop(src, narr, &fakePreview{})
	l.AddSink(sink)
	l.SetSnapshotter(snaps)

	l.Run(context.Background())

	want := []string{"Objects detected: person.", "Objects detected: chair, person."}
	if len(narr.prompts) != len(want) {
		t.Fatalf("Expected prompts %v, got %v", want, narr.prompts)
	}
	for i := range want {
		if narr.prompts[i] != want[i] {
			t.Errorf("prompt[%d] = %q, expected %q", i, narr.prompts[i], want[i])
		}
	}

	if len(sink.published) != 2 {
		t.Errorf("Sink failure must not stop publishing, got %d records", len(sink.published))
	}
	if len(snaps.labels) != 2 || snaps.labels[1] != "chair_person" {
		t.Errorf("Unexpected snapshots %v", snaps.labels)
	}

	last := l.LastAnnouncement()
	if last == nil || last.SessionID != "test" || last.ID == "" {
		t.Errorf("Unexpected last announcement %+v", last)
	}
}

func TestLoop_QuitKey(t *testing.T) {
	src := &fakeSource{script: []read{{}, {}, {}, {}}}
	preview := &fakePreview{keys: []int{-1, 'x', 'q'}}
	l := newTestLoop(src, &fakeNarrator{}, preview)

	l.Run(context.Background())

	if got := l.Stats().Frames; got != 3 {
		t.Errorf("Expected loop to stop on the third frame, got %d", got)
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	src := &fakeSource{script: []read{{}, {}}}
	l := newTestLoop(src, &fakeNarrator{}, &fakePreview{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := l.Stats().Frames; got != 0 {
		t.Errorf("Expected no frames after cancellation, got %d", got)
	}
}

type countingProgress struct{ n int }

func (p *countingProgress) Add(n int) error {
	p.n += n
	return nil
}

func TestLoop_Progress(t *testing.T) {
	src := &fakeSource{script: []read{{}, {}, {}}}
	l := newTestLoop(src, &fakeNarrator{}, nil)
	p := &countingProgress{}
	l.SetProgress(p)

	l.Run(context.Background())

	if p.n != 3 {
		t.Errorf("Expected progress 3, got %d", p.n)
	}
}
