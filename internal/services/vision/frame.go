package vision

import (
	"fmt"
	"image"
	"image/color"

	"echopath/internal/services"

	"gocv.io/x/gocv"
)

var _ services.Frame = (*Frame)(nil)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Frame wraps a captured gocv.Mat.
type Frame struct {
	mat gocv.Mat
}

// NewFrame takes ownership of mat; Close releases it.
func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{mat: mat}
}

func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

func (f *Frame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

// DrawBox draws a bounding box with its caption just above the top-left corner.
func (f *Frame) DrawBox(box image.Rectangle, caption string) error {
	if err := gocv.Rectangle(&f.mat, box, boxColor, 2); err != nil {
		return fmt.Errorf("failed to draw rectangle: %v", err)
	}

	y := box.Min.Y - 10
	if y < 10 {
		y = box.Min.Y + 15
	}
	if err := gocv.PutText(&f.mat, caption, image.Pt(box.Min.X, y), gocv.FontHersheySimplex, 0.5, textColor, 2); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

// Encode returns the frame as JPEG.
func (f *Frame) Encode() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *Frame) Close() error {
	return f.mat.Close()
}
