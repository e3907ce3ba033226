// Package vision runs object detection networks through OpenCV's DNN module.
package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"echopath/internal/labels"
	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/services"

	"gocv.io/x/gocv"
)

const (
	FormatSSD  = "ssd"
	FormatYOLO = "yolo"
)

var _ services.Detector = (*Detector)(nil)

// Options configures a Detector.
type Options struct {
	ModelPath  string
	ConfigPath string
	Format     string
	InputSize  int
	Threshold  float64
	NMS        float64
	Labels     *labels.Table
}

// Detector wraps a gocv.Net. SSD graphs emit rows of 7 values
// [batch, class, confidence, left, top, right, bottom] in normalized
// coordinates; YOLOv8 emits a 1x(4+classes)xN tensor of center boxes.
type Detector struct {
	net    gocv.Net
	opts   Options
	logger *logger.Logger
	mu     sync.Mutex
}

func NewDetector(opts Options, logger *logger.Logger) (*Detector, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
		if opts.Format == FormatSSD {
			opts.InputSize = 300
		}
	}

	d := &Detector{opts: opts, logger: logger}
	if err := d.initializeNet(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Detector) initializeNet() error {
	if _, err := os.Stat(d.opts.ModelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.opts.ModelPath)
	}
	if d.opts.ConfigPath != "" {
		if _, err := os.Stat(d.opts.ConfigPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", d.opts.ConfigPath)
		}
	}

	net := gocv.ReadNet(d.opts.ModelPath, d.opts.ConfigPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", d.opts.ModelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.logger.Info("[MAIN] %s model loaded successfully from %s", d.opts.Format, d.opts.ModelPath)
	return nil
}

// Label resolves a class id through the label table.
func (d *Detector) Label(classID int) (string, error) {
	return d.opts.Labels.Name(classID)
}

func (d *Detector) Detect(frame services.Frame) ([]models.RawDetection, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	mat := f.Mat()
	if mat.Empty() {
		return nil, errors.New("frame is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.opts.Format {
	case FormatSSD:
		return d.detectSSD(mat)
	default:
		return d.detectYOLO(mat)
	}
}

func (d *Detector) detectSSD(mat gocv.Mat) ([]models.RawDetection, error) {
	size := image.Pt(d.opts.InputSize, d.opts.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	if output.Total()%7 != 0 {
		return nil, fmt.Errorf("unexpected SSD output size %d", output.Total())
	}
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(mat.Cols()), float32(mat.Rows())
	var results []models.RawDetection
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if float64(confidence) < d.opts.Threshold {
			continue
		}
		results = append(results, models.RawDetection{
			ClassID:    int(rows.GetFloatAt(i, 1)),
			Confidence: float64(confidence),
			X1:         int(rows.GetFloatAt(i, 3) * cols),
			Y1:         int(rows.GetFloatAt(i, 4) * height),
			X2:         int(rows.GetFloatAt(i, 5) * cols),
			Y2:         int(rows.GetFloatAt(i, 6) * height),
		})
	}
	return results, nil
}

func (d *Detector) detectYOLO(mat gocv.Mat) ([]models.RawDetection, error) {
	size := image.Pt(d.opts.InputSize, d.opts.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", dims)
	}
	attrs, anchors := dims[1], dims[2]

	// (4+nc) x N -> N x (4+nc): one candidate per row.
	grid := output.Reshape(1, attrs)
	defer grid.Close()
	candidates := gocv.NewMat()
	defer candidates.Close()
	gocv.Transpose(grid, &candidates)

	scaleX := float32(mat.Cols()) / float32(d.opts.InputSize)
	scaleY := float32(mat.Rows()) / float32(d.opts.InputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < anchors; i++ {
		classID, best := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := candidates.GetFloatAt(i, c); s > best {
				classID, best = c-4, s
			}
		}
		if classID < 0 || float64(best) < d.opts.Threshold {
			continue
		}

		cx, cy := candidates.GetFloatAt(i, 0), candidates.GetFloatAt(i, 1)
		w, h := candidates.GetFloatAt(i, 2), candidates.GetFloatAt(i, 3)
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		))
		scores = append(scores, best)
		classes = append(classes, classID)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, float32(d.opts.Threshold), float32(d.opts.NMS))
	results := make([]models.RawDetection, 0, len(keep))
	for _, idx := range keep {
		b := boxes[idx]
		results = append(results, models.RawDetection{
			ClassID:    classes[idx],
			Confidence: float64(scores[idx]),
			X1:         b.Min.X,
			Y1:         b.Min.Y,
			X2:         b.Max.X,
			Y2:         b.Max.Y,
		})
	}
	return results, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
