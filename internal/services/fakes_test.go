package services

import (
	"context"
	"errors"
	"image"
	"sync"

	"echopath/internal/models"
	"echopath/internal/services/narration"
)

type fakeFrame struct {
	size   image.Point
	boxes  []string
	closed bool
}

func (f *fakeFrame) Size() image.Point { return f.size }

func (f *fakeFrame) DrawBox(box image.Rectangle, caption string) error {
	f.boxes = append(f.boxes, caption)
	return nil
}

func (f *fakeFrame) Encode() ([]byte, error) { return []byte("jpeg"), nil }

func (f *fakeFrame) Close() error {
	f.closed = true
	return nil
}

// read is one scripted result of fakeSource.Read.
type read struct {
	err        error
	detections []models.RawDetection
	panics     bool
}

// fakeSource replays a script and then reports end of stream.
type fakeSource struct {
	mu       sync.Mutex
	script   []read
	pos      int
	opens    int
	releases int
	openErr  error
	frames   []*fakeFrame
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openErr
}

func (s *fakeSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *fakeSource) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.script) {
		return nil, ErrEndOfStream
	}
	r := s.script[s.pos]
	s.pos++
	if r.err != nil {
		return nil, r.err
	}
	f := &fakeFrame{size: image.Pt(640, 480)}
	s.frames = append(s.frames, f)
	return f, nil
}

// fakeDetector returns the detections scripted for the current read.
type fakeDetector struct {
	source *fakeSource
	names  map[int]string
}

func (d *fakeDetector) Detect(frame Frame) ([]models.RawDetection, error) {
	r := d.source.script[d.source.pos-1]
	if r.panics {
		panic("inference crashed")
	}
	return r.detections, nil
}

func (d *fakeDetector) Label(classID int) (string, error) {
	name, ok := d.names[classID]
	if !ok {
		return "", errors.New("unknown class")
	}
	return name, nil
}

type fakePreview struct {
	keys   []int
	shown  int
	closed int
}

func (p *fakePreview) Show(frame Frame) error {
	p.shown++
	return nil
}

func (p *fakePreview) PollKey() int {
	if len(p.keys) == 0 {
		return -1
	}
	k := p.keys[0]
	p.keys = p.keys[1:]
	return k
}

func (p *fakePreview) Close() error {
	p.closed++
	return nil
}

// fakeNarrator records prompts and enqueues them unchanged.
type fakeNarrator struct {
	mu      sync.Mutex
	prompts []string
	enqueue func(string) error
}

func (n *fakeNarrator) Narrate(ctx context.Context, prompt string) (narration.Result, error) {
	n.mu.Lock()
	n.prompts = append(n.prompts, prompt)
	n.mu.Unlock()
	if n.enqueue != nil {
		if err := n.enqueue(prompt); err != nil {
			return narration.Result{Message: prompt, Fallback: true}, err
		}
	}
	return narration.Result{Message: prompt, Fallback: true}, nil
}

type fakeSink struct {
	published []models.Announcement
	err       error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Publish(ctx context.Context, a models.Announcement) error {
	s.published = append(s.published, a)
	return s.err
}

type fakeSnapshots struct {
	labels []string
}

func (s *fakeSnapshots) AddImage(data []byte, announcementID, label string) {
	s.labels = append(s.labels, label)
}

func box(classID int, conf float64) models.RawDetection {
	return models.RawDetection{ClassID: classID, Confidence: conf, X1: 10, Y1: 10, X2: 100, Y2: 100}
}
