package storage

import (
	"context"
	"time"

	"scrape-gate/pkg/models"
)

// BatchArchive persists finished batches for later inspection.
type BatchArchive interface {
	// SaveBatch stores rec, replacing any earlier record with the same ID.
	SaveBatch(rec models.BatchRecord) error

	// GetBatch loads one record. Unknown IDs return utils.ErrBatchNotFound.
	GetBatch(id string) (*models.BatchRecord, error)

	// ListBatches returns up to limit records, newest first. limit <= 0 means all.
	ListBatches(limit int) ([]models.BatchRecord, error)

	// RunGC runs periodic garbage collection until ctx ends. Run it in a goroutine.
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}
