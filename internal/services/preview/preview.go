// Package preview shows annotated frames on a local window.
package preview

import (
	"fmt"

	"echopath/internal/services"
	"echopath/internal/services/vision"

	"gocv.io/x/gocv"
)

const WindowTitle = "EchoPath Object Detection"

var (
	_ services.Preview = (*Window)(nil)
	_ services.Preview = Headless{}
)

// Window is an OpenCV highgui window.
type Window struct {
	window *gocv.Window
}

func NewWindow(title string) *Window {
	if title == "" {
		title = WindowTitle
	}
	return &Window{window: gocv.NewWindow(title)}
}

func (w *Window) Show(frame services.Frame) error {
	f, ok := frame.(*vision.Frame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", frame)
	}
	w.window.IMShow(f.Mat())
	return nil
}

// PollKey waits 1ms for a key press and returns -1 if none arrived.
func (w *Window) PollKey() int {
	key := w.window.WaitKey(1)
	if key < 0 {
		return -1
	}
	return key & 0xFF
}

func (w *Window) Close() error {
	return w.window.Close()
}

// Headless discards frames. Used on devices without a display.
type Headless struct{}

func (Headless) Show(services.Frame) error { return nil }
func (Headless) PollKey() int              { return -1 }
func (Headless) Close() error              { return nil }

// New returns a window when enabled and a headless preview otherwise.
func New(enabled bool) services.Preview {
	if !enabled {
		return Headless{}
	}
	return NewWindow(WindowTitle)
}
