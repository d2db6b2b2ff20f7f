package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"fruitfresh/internal/model"
)

var errMalformedRecord = errors.New("malformed prediction record")

// RecordStore reports created=false for a record it already holds.
type RecordStore interface {
	Create(ctx context.Context, record *model.PredictionRecord) (bool, error)
}

// RecentInvalidator drops the cached recent feed after a new record is
// stored. It may be nil.
type RecentInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RecordPersistWorker drains the history queue into the database.
type RecordPersistWorker struct {
	conn      *amqp.Connection
	store     RecordStore
	recent    RecentInvalidator
	queueName string
	logger    *zap.Logger

	newBackOff func() backoff.BackOff

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecordPersistWorker(conn *amqp.Connection, store RecordStore, recent RecentInvalidator, queueName string, logger *zap.Logger) *RecordPersistWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordPersistWorker{
		conn:       conn,
		store:      store,
		recent:     recent,
		queueName:  queueName,
		logger:     logger.Named("record_worker"),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

func (w *RecordPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("delivery channel closed")
					return
				}
				err := w.handle(workerCtx, d.Body)
				ack, requeue := disposition(err)
				if ack {
					_ = d.Ack(false)
					continue
				}
				w.logger.Error("persist prediction failed",
					zap.String("message_id", d.MessageId),
					zap.Bool("requeue", requeue),
					zap.Error(err),
				)
				_ = d.Nack(false, requeue)
			}
		}
	}()

	w.logger.Info("record worker started", zap.String("queue", w.queueName))
	return nil
}

// handle stores one queued record, retrying transient store failures.
func (w *RecordPersistWorker) handle(ctx context.Context, body []byte) error {
	var record model.PredictionRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return fmt.Errorf("%w: %v", errMalformedRecord, err)
	}
	if record.RequestID == "" || record.Label == "" {
		return fmt.Errorf("%w: missing request_id or label", errMalformedRecord)
	}

	attempt := 0
	created := false
	op := func() error {
		attempt++
		// Create fills ID, so every attempt starts from a fresh copy.
		rec := record
		ok, err := w.store.Create(ctx, &rec)
		if err != nil {
			w.logger.Warn("store prediction attempt failed",
				zap.String("request_id", record.RequestID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		created = ok
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(w.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("store prediction %s after %d attempts: %w", record.RequestID, attempt, err)
	}

	if !created {
		w.logger.Debug("prediction already stored", zap.String("request_id", record.RequestID))
		return nil
	}
	if w.recent != nil {
		if err := w.recent.Invalidate(ctx); err != nil {
			w.logger.Warn("invalidate recent predictions failed", zap.String("request_id", record.RequestID), zap.Error(err))
		}
	}
	return nil
}

// disposition maps a handle result to the broker acknowledgement. Only
// malformed bodies are dropped; anything else, including shutdown mid-retry,
// goes back on the queue.
func disposition(err error) (ack, requeue bool) {
	switch {
	case err == nil:
		return true, false
	case errors.Is(err, errMalformedRecord):
		return false, false
	default:
		return false, true
	}
}

func (w *RecordPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
