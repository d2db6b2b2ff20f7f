package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fruitfresh/internal/model"
)

type PredictionRepository struct {
	db *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.PredictionRecord{}); err != nil {
		return fmt.Errorf("auto migrate prediction records failed: %w", err)
	}
	return nil
}

// Create is idempotent on request_id so redelivered queue messages are
// harmless. created is false when the record was already stored.
func (r *PredictionRepository) Create(ctx context.Context, record *model.PredictionRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("create prediction record failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]model.PredictionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.PredictionRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list prediction records failed: %w", err)
	}
	return records, nil
}

func (r *PredictionRepository) CountByLabel(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Label string
		Total int64
	}
	if err := r.db.WithContext(ctx).Model(&model.PredictionRecord{}).
		Select("label, COUNT(*) AS total").
		Group("label").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count prediction records failed: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts, nil
}
