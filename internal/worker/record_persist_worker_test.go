package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"fruitfresh/internal/model"
)

type stubStore struct {
	failures int
	calls    int
	stored   map[string]model.PredictionRecord
}

func (s *stubStore) Create(_ context.Context, record *model.PredictionRecord) (bool, error) {
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return false, errors.New("connection reset")
	}
	if s.stored == nil {
		s.stored = map[string]model.PredictionRecord{}
	}
	if _, ok := s.stored[record.RequestID]; ok {
		return false, nil
	}
	record.ID = uint(len(s.stored) + 1)
	s.stored[record.RequestID] = *record
	return true, nil
}

type stubRecent struct {
	invalidated int
	err         error
}

func (s *stubRecent) Invalidate(context.Context) error {
	s.invalidated++
	return s.err
}

func newTestWorker(store RecordStore, recent RecentInvalidator, b func() backoff.BackOff) *RecordPersistWorker {
	w := NewRecordPersistWorker(nil, store, recent, "test.queue", zap.NewNop())
	w.newBackOff = b
	return w
}

func maxRetries(n uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), n)
	}
}

func recordBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(model.PredictionRecord{
		RequestID: "req-1",
		Label:     "freshapples",
		Fruit:     "apple",
		Freshness: "fresh",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return body
}

func TestHandleStoresAndInvalidates(t *testing.T) {
	store := &stubStore{}
	recent := &stubRecent{}
	if err := newTestWorker(store, recent, maxRetries(3)).handle(context.Background(), recordBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec, ok := store.stored["req-1"]; !ok || rec.Label != "freshapples" {
		t.Fatalf("unexpected stored records %+v", store.stored)
	}
	if recent.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", recent.invalidated)
	}
}

func TestHandleRedeliveredRecordLeavesFeedAlone(t *testing.T) {
	store := &stubStore{}
	recent := &stubRecent{}
	w := newTestWorker(store, recent, maxRetries(0))
	for i := 0; i < 2; i++ {
		if err := w.handle(context.Background(), recordBody(t)); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.stored))
	}
	if recent.invalidated != 1 {
		t.Fatalf("duplicate delivery must not touch the feed, invalidated %d times", recent.invalidated)
	}
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	store := &stubStore{failures: 2}
	if err := newTestWorker(store, nil, maxRetries(3)).handle(context.Background(), recordBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}

func TestHandleGivesUpAfterRetries(t *testing.T) {
	store := &stubStore{failures: -1}
	recent := &stubRecent{}
	err := newTestWorker(store, recent, maxRetries(2)).handle(context.Background(), recordBody(t))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
	if recent.invalidated != 0 {
		t.Fatal("unstored record must not touch the feed")
	}
	if ack, requeue := disposition(err); ack || !requeue {
		t.Fatalf("store outage must requeue, got ack=%v requeue=%v", ack, requeue)
	}
}

func TestHandleCancelledMidRetryIsRequeued(t *testing.T) {
	store := &stubStore{failures: -1}
	w := newTestWorker(store, nil, func() backoff.BackOff {
		return backoff.NewConstantBackOff(20 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.handle(ctx, recordBody(t))
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if store.calls < 1 {
		t.Fatal("expected at least one store attempt")
	}
	if ack, requeue := disposition(err); ack || !requeue {
		t.Fatalf("cancelled delivery must be requeued, got ack=%v requeue=%v (err %v)", ack, requeue, err)
	}
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	store := &stubStore{}
	w := newTestWorker(store, nil, maxRetries(3))
	for name, body := range map[string][]byte{
		"not json":      []byte("{"),
		"missing label": []byte(`{"request_id":"req-1"}`),
	} {
		err := w.handle(context.Background(), body)
		if !errors.Is(err, errMalformedRecord) {
			t.Fatalf("%s: expected errMalformedRecord, got %v", name, err)
		}
		if ack, requeue := disposition(err); ack || requeue {
			t.Fatalf("%s: malformed body must be dropped, got ack=%v requeue=%v", name, ack, requeue)
		}
	}
	if store.calls != 0 {
		t.Fatal("malformed bodies must not reach the store")
	}
}

func TestHandleIgnoresInvalidateFailure(t *testing.T) {
	recent := &stubRecent{err: errors.New("redis down")}
	if err := newTestWorker(&stubStore{}, recent, maxRetries(0)).handle(context.Background(), recordBody(t)); err != nil {
		t.Fatalf("cache failure must not fail the delivery: %v", err)
	}
}

func TestDispositionAcksSuccess(t *testing.T) {
	if ack, requeue := disposition(nil); !ack || requeue {
		t.Fatalf("expected ack, got ack=%v requeue=%v", ack, requeue)
	}
}
