package vision

import (
	"errors"
	"fmt"
)

const (
	width    = 224
	height   = 224
	channels = 3
)

var (
	ErrModelFileNotFound  = errors.New("model file not found")
	ErrClassCountMismatch = errors.New("class count mismatch")
	ErrTensorShape        = errors.New("unexpected tensor shape")
	ErrUnsupportedInput   = errors.New("unsupported input image")
	ErrRuntimeUnavailable = errors.New("inference runtime unavailable")
)

// InputShape is the NCHW shape every preprocessed image has.
var InputShape = [4]int64{1, channels, height, width}

// Tensor is a dense float32 tensor in NCHW layout.
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// Validate checks the tensor matches InputShape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrTensorShape)
	}
	if t.Shape != InputShape {
		return fmt.Errorf("%w: got %v, want %v", ErrTensorShape, t.Shape, InputShape)
	}
	if want := int(InputShape[0] * InputShape[1] * InputShape[2] * InputShape[3]); len(t.Data) != want {
		return fmt.Errorf("%w: %d values, want %d", ErrTensorShape, len(t.Data), want)
	}
	return nil
}
