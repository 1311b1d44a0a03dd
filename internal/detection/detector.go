package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/ironsheep/palmcount/internal/config"
)

// Backend names accepted by Options.Backend.
const (
	BackendONNX   = "onnx"
	BackendOpenCV = "opencv"
)

// ErrBackendUnavailable is returned when the requested backend was not
// compiled into this binary.
var ErrBackendUnavailable = errors.New("detection backend not available in this build")

// Detector finds objects in a decoded image.
type Detector interface {
	// Detect returns the boxes found in img, highest score first.
	Detect(ctx context.Context, img image.Image) ([]Box, error)

	// Close releases the model and any native resources.
	Close() error
}

// Options configures a Detector.
type Options struct {
	ModelPath string
	Backend   string

	// InputSize is the square model input edge in pixels.
	InputSize int

	Confidence float32
	IoU        float32

	// Classes names each model class by index. Its length must match the
	// model's class count.
	Classes []string

	// SharedLibraryPath locates the onnxruntime library. Empty uses the
	// platform default search.
	SharedLibraryPath string
}

// DefaultOptions returns the settings used for the palm bunch model.
func DefaultOptions() Options {
	return Options{
		Backend:    BackendONNX,
		InputSize:  640,
		Confidence: 0.4,
		IoU:        0.7,
		Classes:    []string{"kelapa sawit"},
	}
}

// FromConfig maps the detection settings of a run onto detector options.
func FromConfig(d config.Detect) Options {
	return Options{
		ModelPath:         d.ModelPath,
		Backend:           d.Backend,
		InputSize:         d.InputSize,
		Confidence:        float32(d.Confidence),
		IoU:               float32(d.IoU),
		Classes:           d.Classes,
		SharedLibraryPath: d.SharedLibraryPath,
	}
}

// Validate checks the options before any model is loaded.
func (o Options) Validate() error {
	if o.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if o.InputSize <= 0 || o.InputSize%32 != 0 {
		return fmt.Errorf("input size %d must be a positive multiple of 32", o.InputSize)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence %g out of range [0,1]", o.Confidence)
	}
	if o.IoU < 0 || o.IoU > 1 {
		return fmt.Errorf("iou %g out of range [0,1]", o.IoU)
	}
	if len(o.Classes) == 0 {
		return fmt.Errorf("at least one class name is required")
	}
	return nil
}

func (o Options) decodeParams(src image.Rectangle) decodeParams {
	return decodeParams{
		classes:    len(o.Classes),
		anchors:    AnchorCount(o.InputSize),
		inputSize:  o.InputSize,
		confidence: o.Confidence,
		srcWidth:   src.Dx(),
		srcHeight:  src.Dy(),
	}
}

// withDefaults fills zero-valued settings from DefaultOptions. Confidence is
// left alone because zero is a valid threshold.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Backend == "" {
		o.Backend = def.Backend
	}
	if o.InputSize == 0 {
		o.InputSize = def.InputSize
	}
	if o.IoU == 0 {
		o.IoU = def.IoU
	}
	if len(o.Classes) == 0 {
		o.Classes = def.Classes
	}
	return o
}

// New loads the model and returns a Detector for the configured backend.
// Zero-valued options other than Confidence take their DefaultOptions value.
func New(opts Options) (Detector, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector options: %w", err)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}

	switch strings.ToLower(opts.Backend) {
	case BackendONNX:
		return newONNXDetector(opts)
	case BackendOpenCV:
		return newOpenCVDetector(opts)
	default:
		return nil, fmt.Errorf("unknown detection backend %q", opts.Backend)
	}
}
