package model

import "time"

// PredictionRecord is one classified upload.
type PredictionRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RequestID     string    `gorm:"size:64;not null;uniqueIndex" json:"request_id"`
	Label         string    `gorm:"size:32;not null;index" json:"label"`
	Fruit         string    `gorm:"size:32;not null" json:"fruit"`
	Freshness     string    `gorm:"size:16;not null" json:"freshness"`
	ImageSHA1     string    `gorm:"column:image_sha1;size:40;index" json:"image_sha1"`
	ImageFormat   string    `gorm:"size:8" json:"image_format"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	LatencyMs     int64     `json:"latency_ms"`
	InfoAvailable bool      `json:"info_available"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (PredictionRecord) TableName() string {
	return "prediction_records"
}
