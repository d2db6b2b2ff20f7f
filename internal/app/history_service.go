package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fruitfresh/internal/fruit"
	"fruitfresh/internal/model"
)

var ErrHistoryDisabled = errors.New("prediction history is disabled")

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

type PredictionStore interface {
	ListRecent(ctx context.Context, limit int) ([]model.PredictionRecord, error)
	CountByLabel(ctx context.Context) (map[string]int64, error)
}

type RecentCache interface {
	Size() int
	Recent(ctx context.Context, limit int) ([]model.PredictionRecord, bool, error)
	Generation(ctx context.Context) (int64, error)
	Replace(ctx context.Context, gen int64, records []model.PredictionRecord) (bool, error)
}

type LabelCount struct {
	Label     fruit.Label `json:"label"`
	Fruit     string      `json:"fruit"`
	Freshness string      `json:"freshness"`
	Count     int64       `json:"count"`
}

type HistoryStats struct {
	Total  int64        `json:"total"`
	Labels []LabelCount `json:"labels"`
}

type HistoryService struct {
	store  PredictionStore
	cache  RecentCache
	logger *zap.Logger
}

// NewHistoryService returns a service over store. A nil store means history
// is disabled; cache may be nil.
func NewHistoryService(store PredictionStore, cache RecentCache, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{store: store, cache: cache, logger: logger.Named("history")}
}

func (s *HistoryService) Enabled() bool {
	return s != nil && s.store != nil
}

// Recent returns the newest predictions, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]model.PredictionRecord, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	if s.cache != nil {
		records, hit, err := s.cache.Recent(ctx, limit)
		if err != nil {
			s.logger.Warn("read recent cache failed", zap.Error(err))
		} else if hit {
			return records, nil
		}
	}

	fetch := limit
	if s.cache != nil && s.cache.Size() > fetch && s.cache.Size() <= maxRecentLimit {
		fetch = s.cache.Size()
	}

	// The generation is read before the snapshot so a record stored while we
	// query makes Replace a no-op instead of caching a stale list.
	refill := s.cache != nil && fetch == s.cache.Size()
	var gen int64
	if refill {
		var err error
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.logger.Warn("read recent cache generation failed", zap.Error(err))
			refill = false
		}
	}

	records, err := s.store.ListRecent(ctx, fetch)
	if err != nil {
		return nil, err
	}

	if refill {
		applied, err := s.cache.Replace(ctx, gen, records)
		switch {
		case err != nil:
			s.logger.Warn("refill recent cache failed", zap.Error(err))
		case !applied:
			s.logger.Debug("recent cache changed during refill, skipped")
		}
	}

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Stats counts stored predictions for every catalog label, unseen ones as zero.
func (s *HistoryService) Stats(ctx context.Context) (*HistoryStats, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	counts, err := s.store.CountByLabel(ctx)
	if err != nil {
		return nil, err
	}

	stats := &HistoryStats{Labels: make([]LabelCount, 0, fruit.NumLabels)}
	for _, label := range fruit.Catalog() {
		n := counts[label.String()]
		stats.Total += n
		stats.Labels = append(stats.Labels, LabelCount{
			Label:     label,
			Fruit:     label.LookupName(),
			Freshness: label.Freshness(),
			Count:     n,
		})
	}
	return stats, nil
}
