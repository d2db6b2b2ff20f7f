package vision

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadFunc builds a model. It is called until it succeeds once.
type LoadFunc func() (Model, error)

// Loader memoizes a model for the lifetime of the process. Failed loads are
// not cached, so a weights file deployed after start-up is picked up by the
// next request.
type Loader struct {
	mu     sync.Mutex
	load   LoadFunc
	model  Model
	logger *zap.Logger
}

func NewLoader(load LoadFunc, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{load: load, logger: logger.Named("model_loader")}
}

// NewONNXLoader loads the ONNX weights at path on first use.
func NewONNXLoader(path string, numClasses int, opts ModelOptions, logger *zap.Logger) *Loader {
	return NewLoader(func() (Model, error) {
		return LoadModel(path, numClasses, opts)
	}, logger)
}

// Model returns the loaded model, loading it if needed.
func (l *Loader) Model(ctx context.Context) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	m, err := l.load()
	if err != nil {
		l.logger.Warn("model load failed", zap.Error(err))
		return nil, err
	}
	l.model = m
	l.logger.Info("model loaded",
		zap.Int("num_classes", m.NumClasses()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return m, nil
}

func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model != nil
}

func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return nil
	}
	err := l.model.Close()
	l.model = nil
	return err
}
