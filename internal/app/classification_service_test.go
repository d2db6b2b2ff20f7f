package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"fruitfresh/internal/fruit"
	"fruitfresh/internal/logging"
	"fruitfresh/internal/model"
	"fruitfresh/internal/nutrition"
	"fruitfresh/internal/vision"
)

type stubModel struct {
	scores []float32
	calls  int
}

func (m *stubModel) Scores(t *vision.Tensor) ([]float32, error) {
	m.calls++
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return m.scores, nil
}

func (m *stubModel) NumClasses() int { return len(m.scores) }

func (m *stubModel) Close() error { return nil }

type stubProvider struct {
	model vision.Model
	err   error
}

func (p *stubProvider) Model(context.Context) (vision.Model, error) {
	return p.model, p.err
}

type stubLookup struct {
	info  nutrition.FruitInfo
	ok    bool
	names []string
}

func (l *stubLookup) Lookup(_ context.Context, name string) (nutrition.FruitInfo, bool) {
	l.names = append(l.names, name)
	return l.info, l.ok
}

type stubPublisher struct {
	records []model.PredictionRecord
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, record model.PredictionRecord) error {
	p.records = append(p.records, record)
	return p.err
}

func oneHot(index int) []float32 {
	scores := make([]float32, fruit.NumLabels)
	scores[index] = 3.5
	return scores
}

func jpegUpload(t *testing.T, w, h int) Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return Upload{Filename: "apple.jpg", Data: buf.Bytes()}
}

var apple = nutrition.FruitInfo{
	Name:   "Apple",
	Family: "Rosaceae",
	Order:  "Rosales",
	Genus:  "Malus",
	Nutritions: nutrition.Nutritions{
		Calories: 52, Fat: 0.4, Sugar: 10.3, Carbohydrates: 11.4, Protein: 0.3,
	},
}

func TestClassifyHappyPath(t *testing.T) {
	lookup := &stubLookup{info: apple, ok: true}
	publisher := &stubPublisher{}
	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: oneHot(int(fruit.FreshApples))}},
		nil, lookup, publisher, zap.NewNop(),
	)

	result, err := svc.ClassifyWithID(context.Background(), "req-1", jpegUpload(t, 500, 400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != fruit.FreshApples || result.Freshness != "fresh" || result.Fruit != "apple" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Guidance != fruit.FreshApples.Guidance() {
		t.Fatalf("unexpected guidance %q", result.Guidance)
	}
	if !result.InfoAvailable || result.Info == nil || result.Info.Genus != "Malus" {
		t.Fatalf("expected nutrition info, got %+v", result.Info)
	}
	if len(lookup.names) != 1 || lookup.names[0] != "apple" {
		t.Fatalf("expected lookup of apple, got %v", lookup.names)
	}
	if result.Image != (ImageMeta{Format: "jpeg", Width: 500, Height: 400}) {
		t.Fatalf("unexpected image meta %+v", result.Image)
	}
	if len(publisher.records) != 1 {
		t.Fatalf("expected one published record, got %d", len(publisher.records))
	}
	rec := publisher.records[0]
	if rec.RequestID != "req-1" || rec.Label != "freshapples" || len(rec.ImageSHA1) != 40 || !rec.InfoAvailable {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestClassifyGeneratesRequestID(t *testing.T) {
	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: oneHot(int(fruit.RottenBanana))}},
		nil, nil, nil, zap.NewNop(),
	)
	result, err := svc.Classify(context.Background(), jpegUpload(t, 32, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.RequestID) != 36 {
		t.Fatalf("expected uuid request id, got %q", result.RequestID)
	}
	if result.Label != fruit.RottenBanana || result.Fruit != "banana" || result.Freshness != "rotten" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyInfoUnavailable(t *testing.T) {
	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: oneHot(int(fruit.RottenOranges))}},
		nil, &stubLookup{}, nil, zap.NewNop(),
	)
	result, err := svc.ClassifyWithID(context.Background(), "req-2", jpegUpload(t, 64, 48))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.InfoAvailable || result.Info != nil {
		t.Fatalf("expected no info, got %+v", result.Info)
	}
	if result.Guidance == "" || result.Fruit != "orange" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyPropagatesModelNotFound(t *testing.T) {
	lookup := &stubLookup{}
	svc := NewClassificationService(
		&stubProvider{err: vision.ErrModelFileNotFound},
		nil, lookup, nil, zap.NewNop(),
	)
	_, err := svc.ClassifyWithID(context.Background(), "req-3", jpegUpload(t, 10, 10))
	if !errors.Is(err, vision.ErrModelFileNotFound) {
		t.Fatalf("expected ErrModelFileNotFound, got %v", err)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.RequestID != "req-3" {
		t.Fatalf("expected operation error with request id, got %v", err)
	}
	if len(lookup.names) != 0 {
		t.Fatal("lookup must not run when the model is missing")
	}
}

func TestClassifyRejectsUnsupportedInput(t *testing.T) {
	m := &stubModel{scores: oneHot(0)}
	svc := NewClassificationService(&stubProvider{model: m}, nil, nil, nil, zap.NewNop())

	_, err := svc.ClassifyWithID(context.Background(), "req-4", Upload{Filename: "notes.txt", Data: []byte("hello")})
	if !errors.Is(err, vision.ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
	if _, err := svc.ClassifyWithID(context.Background(), "req-5", Upload{}); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("expected ErrEmptyUpload, got %v", err)
	}
	if m.calls != 0 {
		t.Fatal("model must not run on rejected input")
	}
}

func TestClassifyRejectsWrongScoreCount(t *testing.T) {
	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: []float32{1, 2}}},
		nil, nil, nil, zap.NewNop(),
	)
	if _, err := svc.ClassifyWithID(context.Background(), "req-6", jpegUpload(t, 8, 8)); !errors.Is(err, vision.ErrClassCountMismatch) {
		t.Fatalf("expected ErrClassCountMismatch, got %v", err)
	}
}

func TestClassifyPublishFailureIsNotFatal(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("broker down")}
	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: oneHot(int(fruit.FreshBanana))}},
		nil, nil, publisher, zap.NewNop(),
	)
	if _, err := svc.ClassifyWithID(context.Background(), "req-7", jpegUpload(t, 16, 16)); err != nil {
		t.Fatalf("publish failure must not fail classification: %v", err)
	}
	if len(publisher.records) != 1 {
		t.Fatal("expected a publish attempt")
	}
}

func TestClassifyEndToEndWithUnreachableNutrition(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	svc := NewClassificationService(
		&stubProvider{model: &stubModel{scores: []float32{0.1, 0.2, 0.3, 4.0, 0.5, 0.6}}},
		nil,
		nutrition.NewClient(addr, 200*time.Millisecond, zap.NewNop()),
		nil,
		zap.NewNop(),
	)
	result, err := svc.ClassifyWithID(context.Background(), "req-8", jpegUpload(t, 500, 400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != fruit.RottenApples {
		t.Fatalf("expected rottenapples, got %s", result.Label)
	}
	if result.InfoAvailable || result.Info != nil {
		t.Fatal("expected info to be unavailable")
	}
	if result.Guidance != fruit.RottenApples.Guidance() {
		t.Fatalf("unexpected guidance %q", result.Guidance)
	}
}
