package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fruitfresh/internal/fruit"
	"fruitfresh/internal/logging"
	"fruitfresh/internal/model"
	"fruitfresh/internal/nutrition"
	"fruitfresh/internal/vision"
)

var ErrEmptyUpload = errors.New("empty upload")

type ModelProvider interface {
	Model(ctx context.Context) (vision.Model, error)
}

type InfoLookup interface {
	Lookup(ctx context.Context, name string) (nutrition.FruitInfo, bool)
}

// RecordPublisher hands finished predictions to the history pipeline.
type RecordPublisher interface {
	Publish(ctx context.Context, record model.PredictionRecord) error
}

type Upload struct {
	Filename string
	Data     []byte
}

type ImageMeta struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ClassificationResult struct {
	RequestID     string               `json:"request_id"`
	Label         fruit.Label          `json:"label"`
	Freshness     string               `json:"freshness"`
	Fruit         string               `json:"fruit"`
	Guidance      string               `json:"guidance"`
	Info          *nutrition.FruitInfo `json:"info"`
	InfoAvailable bool                 `json:"info_available"`
	Image         ImageMeta            `json:"image"`
	LatencyMs     int64                `json:"latency_ms"`
}

// ClassificationService runs the per-upload pipeline. It keeps no state
// between requests beyond the shared model.
type ClassificationService struct {
	models       ModelProvider
	preprocessor *vision.Preprocessor
	info         InfoLookup
	publisher    RecordPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewClassificationService wires the pipeline. publisher may be nil when
// history is disabled.
func NewClassificationService(
	models ModelProvider,
	preprocessor *vision.Preprocessor,
	info InfoLookup,
	publisher RecordPublisher,
	logger *zap.Logger,
) *ClassificationService {
	if preprocessor == nil {
		preprocessor, _ = vision.NewPreprocessor("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassificationService{
		models:       models,
		preprocessor: preprocessor,
		info:         info,
		publisher:    publisher,
		logger:       logger.Named("classification"),
		now:          time.Now,
	}
}

// Classify is ClassifyWithID with a fresh request id.
func (s *ClassificationService) Classify(ctx context.Context, upload Upload) (*ClassificationResult, error) {
	return s.ClassifyWithID(ctx, uuid.NewString(), upload)
}

// ClassifyWithID predicts the label of one uploaded image and enriches it
// with guidance and nutrition info. Lookup and history failures never fail
// the request.
func (s *ClassificationService) ClassifyWithID(ctx context.Context, requestID string, upload Upload) (*ClassificationResult, error) {
	const op = "classify"
	started := s.now()
	log := logging.WithOperation(s.logger, op, requestID)

	if len(upload.Data) == 0 {
		return nil, logging.NewOperationError(op, requestID, ErrEmptyUpload)
	}

	img, format, err := vision.DecodeImage(upload.Data)
	if err != nil {
		return nil, logging.NewOperationError(op, requestID, err)
	}
	bounds := img.Bounds()

	m, err := s.models.Model(ctx)
	if err != nil {
		return nil, logging.NewOperationError(op, requestID, err)
	}

	label, err := vision.PredictImage(m, s.preprocessor.Preprocess(img))
	if err != nil {
		return nil, logging.NewOperationError(op, requestID, err)
	}

	result := &ClassificationResult{
		RequestID: requestID,
		Label:     label,
		Freshness: label.Freshness(),
		Fruit:     label.LookupName(),
		Guidance:  label.Guidance(),
		Image: ImageMeta{
			Format: format,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		},
	}

	if s.info != nil {
		if info, ok := s.info.Lookup(ctx, result.Fruit); ok {
			result.Info = &info
			result.InfoAvailable = true
		}
	}

	finished := s.now()
	result.LatencyMs = finished.Sub(started).Milliseconds()

	log.Info("image classified",
		zap.String("filename", upload.Filename),
		zap.String("label", label.String()),
		zap.Bool("info_available", result.InfoAvailable),
		zap.Int64("latency_ms", result.LatencyMs),
	)

	s.publish(ctx, log, result, upload.Data, finished)
	return result, nil
}

func (s *ClassificationService) publish(ctx context.Context, log *zap.Logger, result *ClassificationResult, data []byte, at time.Time) {
	if s.publisher == nil {
		return
	}
	sum := sha1.Sum(data)
	record := model.PredictionRecord{
		RequestID:     result.RequestID,
		Label:         result.Label.String(),
		Fruit:         result.Fruit,
		Freshness:     result.Freshness,
		ImageSHA1:     hex.EncodeToString(sum[:]),
		ImageFormat:   result.Image.Format,
		Width:         result.Image.Width,
		Height:        result.Image.Height,
		LatencyMs:     result.LatencyMs,
		InfoAvailable: result.InfoAvailable,
		CreatedAt:     at,
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		log.Warn("publish prediction record failed", zap.Error(err))
	}
}
