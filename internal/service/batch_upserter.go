package service

import (
	"context"
	"fmt"
	"time"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"

	"go.uber.org/zap"
)

// defaultBatchSize is the number of devices per bulk write when the config
// does not say otherwise.
const defaultBatchSize = 100

// BatchUpsertResult aggregates the outcome of writing one full inventory.
type BatchUpsertResult struct {
	SuccessCount int
	FailureCount int
	Writes       int
	TotalCost    float64
	Errors       []domain.SyncError
}

// BatchUpserter writes a fetched inventory to storage in fixed-size
// contiguous batches. Batches run strictly sequentially: that serialization is
// the pipeline's backpressure on the storage backend, so no concurrency is
// introduced here.
type BatchUpserter struct {
	writer    repository.BulkDeviceWriter
	batchSize int
	logger    *zap.Logger
}

func NewBatchUpserter(writer repository.BulkDeviceWriter, batchSize int, logger *zap.Logger) *BatchUpserter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchUpserter{
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
	}
}

// UpsertAll splits records into ceil(N/batchSize) batches and writes them in
// order. A batch whose bulk call fails outright is counted failed as a unit
// under one synthetic batch_{n} error entry, and the loop moves on to the
// next batch. An empty inventory returns a zero result without touching the
// writer.
func (b *BatchUpserter) UpsertAll(ctx context.Context, records []domain.DeviceRecord, progress ProgressFunc) BatchUpsertResult {
	res := BatchUpsertResult{}
	total := len(records)
	if total == 0 {
		return res
	}

	totalBatches := (total + b.batchSize - 1) / b.batchSize

	for i := 0; i < totalBatches; i++ {
		start := i * b.batchSize
		end := start + b.batchSize
		if end > total {
			end = total
		}
		batch := records[start:end]

		if progress != nil {
			progress(SyncProgress{
				Phase:            PhaseUpsert,
				DevicesProcessed: res.SuccessCount + res.FailureCount,
				TotalDevices:     total,
				BatchNumber:      i + 1,
				TotalBatches:     totalBatches,
			})
		}

		items, err := b.writer.BulkUpsert(ctx, batch)
		if err != nil {
			res.FailureCount += len(batch)
			b.addError(&res, domain.SyncError{
				DeviceID:  fmt.Sprintf("batch_%d", i+1),
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			b.logger.Error("Bulk upsert batch failed",
				zap.Int("batch", i+1),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}

		for _, it := range items {
			if it.Err != nil {
				res.FailureCount++
				b.addError(&res, domain.SyncError{
					DeviceID:   it.ID,
					DeviceName: it.Name,
					Error:      it.Err.Error(),
					Timestamp:  time.Now().UTC(),
				})
			} else {
				res.SuccessCount++
				res.Writes++
				res.TotalCost += it.Cost
			}
		}
	}

	return res
}

// addError appends while under the cap. Beyond it errors are dropped silently;
// only the failure counters keep moving.
func (b *BatchUpserter) addError(res *BatchUpsertResult, e domain.SyncError) {
	if len(res.Errors) < domain.MaxSyncErrors {
		res.Errors = append(res.Errors, e)
	}
}
