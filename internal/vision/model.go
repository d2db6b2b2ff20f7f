package vision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Model scores a preprocessed image. Implementations are safe for concurrent use.
type Model interface {
	Scores(t *Tensor) ([]float32, error)
	NumClasses() int
	Close() error
}

// ModelOptions tunes the ONNX Runtime session.
type ModelOptions struct {
	// SharedLibPath points at libonnxruntime; empty uses the platform default.
	SharedLibPath  string
	IntraOpThreads int
}

// ONNXModel is the ResNet-34 freshness network exported to ONNX in eval mode.
// Input and output tensors are bound once; Run is serialized by mu.
type ONNXModel struct {
	mu sync.Mutex

	path       string
	numClasses int

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var envMu sync.Mutex

func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

// LoadModel opens the weights at path on the CPU provider and checks the
// network's output width equals numClasses.
func LoadModel(path string, numClasses int, opts ModelOptions) (*ONNXModel, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: num classes must be positive, got %d", ErrClassCountMismatch, numClasses)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelFileNotFound, path)
		}
		return nil, fmt.Errorf("stat model file failed: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrModelFileNotFound, path)
	}

	if err := initEnvironment(opts.SharedLibPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("onnx model must have one input and one output, got %d/%d", len(inputs), len(outputs))
	}

	inputShape := bindDynamic(inputs[0].Dimensions)
	if len(inputShape) != len(InputShape) {
		return nil, fmt.Errorf("%w: model input %v, want %v", ErrTensorShape, inputShape, InputShape)
	}
	for i, d := range InputShape {
		if inputShape[i] != d {
			return nil, fmt.Errorf("%w: model input %v, want %v", ErrTensorShape, inputShape, InputShape)
		}
	}
	outputShape := bindDynamic(outputs[0].Dimensions)
	if got := outputShape.FlattenedSize(); got != int64(numClasses) {
		return nil, fmt.Errorf("%w: model outputs %d scores, want %d", ErrClassCountMismatch, got, numClasses)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new session options: %w", err)
	}
	defer sessionOpts.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessionOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			outputTensor.Destroy()
			inputTensor.Destroy()
			return nil, fmt.Errorf("onnx set intra op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, sessionOpts)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	return &ONNXModel{
		path:       path,
		numClasses: numClasses,
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
	}, nil
}

// bindDynamic fixes symbolic dimensions (reported as -1) to 1.
func bindDynamic(dims ort.Shape) ort.Shape {
	out := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

func (m *ONNXModel) NumClasses() int {
	return m.numClasses
}

// Scores runs one forward pass and returns the raw logits.
func (m *ONNXModel) Scores(t *Tensor) ([]float32, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, errors.New("model is closed")
	}

	copy(m.input.GetData(), t.Data)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	out := m.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var closeErr error
	if m.session != nil {
		closeErr = m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		if err := m.input.Destroy(); err != nil && closeErr == nil {
			closeErr = err
		}
		m.input = nil
	}
	if m.output != nil {
		if err := m.output.Destroy(); err != nil && closeErr == nil {
			closeErr = err
		}
		m.output = nil
	}
	return closeErr
}
