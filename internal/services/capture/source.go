// Package capture opens the camera feed, a video file or a GStreamer pipeline.
package capture

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"echopath/internal/services"
	"echopath/internal/services/vision"

	"gocv.io/x/gocv"
)

// DefaultPipeline receives the H.264 RTP stream broadcast by the cane's camera.
const DefaultPipeline = "udpsrc port=5000 ! application/x-rtp, encoding-name=H264 ! " +
	"rtph264depay ! avdec_h264 ! videoconvert ! appsink"

var _ services.VideoSource = (*Source)(nil)

// Source is a gocv.VideoCapture that can be released and reopened.
type Source struct {
	uri    string
	api    gocv.VideoCaptureAPI
	finite bool

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewSource accepts a device index ("0"), a file path, a URL or, with api
// "gstreamer", a pipeline description.
func NewSource(uri, api string) *Source {
	s := &Source{uri: uri, api: gocv.VideoCaptureAny}
	if api == "gstreamer" {
		s.api = gocv.VideoCaptureGstreamer
		if s.uri == "" {
			s.uri = DefaultPipeline
		}
		return s
	}
	if _, err := strconv.Atoi(uri); err != nil {
		if info, err := os.Stat(uri); err == nil && info.Mode().IsRegular() {
			s.finite = true
		}
	}
	return s
}

// Finite reports whether the source is a file that ends.
func (s *Source) Finite() bool {
	return s.finite
}

func (s *Source) device() interface{} {
	if idx, err := strconv.Atoi(s.uri); err == nil {
		return idx
	}
	return s.uri
}

func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}

	capture, err := gocv.OpenVideoCaptureWithAPI(s.device(), s.api)
	if err != nil {
		return fmt.Errorf("failed to open video source %q: %w", s.uri, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("video source %q is not opened", s.uri)
	}

	s.capture = capture
	return nil
}

func (s *Source) Read() (services.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, errors.New("video source not opened")
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if s.finite {
			return nil, services.ErrEndOfStream
		}
		return nil, errors.New("failed to grab frame")
	}
	return vision.NewFrame(mat), nil
}

// FrameCount returns the number of frames of a file source, or 0 when
// unknown. A closed source is measured with a throwaway capture.
func (s *Source) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finite {
		return 0
	}
	if s.capture != nil {
		return int(s.capture.Get(gocv.VideoCaptureFrameCount))
	}

	tmp, err := gocv.OpenVideoCaptureWithAPI(s.uri, s.api)
	if err != nil {
		return 0
	}
	defer tmp.Close()
	return int(tmp.Get(gocv.VideoCaptureFrameCount))
}

func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
