package services

import (
	"context"
	"errors"
	"image"

	"echopath/internal/models"
	"echopath/internal/services/narration"
)

// ErrEndOfStream is returned by finite sources (video files) once the last
// frame has been read.
var ErrEndOfStream = errors.New("end of stream")

// Frame is a single captured image owned by the loop for one iteration.
type Frame interface {
	Size() image.Point
	DrawBox(box image.Rectangle, caption string) error
	Encode() ([]byte, error)
	Close() error
}

type VideoSource interface {
	Open() error
	Read() (Frame, error)
	Release() error
}

// Detector finds objects in a frame and names their classes.
type Detector interface {
	Detect(frame Frame) ([]models.RawDetection, error)
	Label(classID int) (string, error)
}

// Preview shows annotated frames and reports key presses. PollKey returns -1
// when no key was pressed.
type Preview interface {
	Show(frame Frame) error
	PollKey() int
	Close() error
}

// Narrator speaks a prompt, possibly after rewording it.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (narration.Result, error)
}

// AnnouncementSink receives every fired announcement (journal, feed, MQTT).
type AnnouncementSink interface {
	Publish(ctx context.Context, a models.Announcement) error
	Name() string
}

// Snapshotter keeps the annotated frame of an announcement.
type Snapshotter interface {
	AddImage(data []byte, announcementID, label string)
}

// Progress is advanced once per processed frame.
type Progress interface {
	Add(n int) error
}
