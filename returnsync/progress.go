package returnsync

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

// ErrSyncAlreadyRunning is returned when a trigger arrives while
// another run holds the single running slot.
var ErrSyncAlreadyRunning = errors.New("a sync is already running")

// Counter updates are flushed to the row every this many items so the
// status endpoint stays fresh without a write per record.
const progressFlushEvery = 10

// ProgressTracker owns one sync_runs row for the lifetime of a run.
// Counters accumulate in memory and are flushed periodically; phase
// and status transitions write through immediately. It is driven from
// the single sync goroutine and is not safe for concurrent use.
type ProgressTracker struct {
	db         *gorm.DB
	run        *models.SyncRun
	sinceFlush int
}

// BeginRun claims the running slot by inserting a pending row, failing
// with ErrSyncAlreadyRunning if any row is still in status running.
// The check and the insert share a transaction.
func BeginRun(db *gorm.DB, syncType string) (*ProgressTracker, error) {
	var run models.SyncRun
	err := db.Transaction(func(tx *gorm.DB) error {
		var active models.SyncRun
		err := tx.Where("status IN ?", []string{models.SyncRunStatusPending, models.SyncRunStatusRunning}).
			Take(&active).Error
		if err == nil {
			return ErrSyncAlreadyRunning
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		run = models.SyncRun{
			SyncType:         syncType,
			Status:           models.SyncRunStatusPending,
			Phase:            models.SyncPhaseInitializing,
			StartedAt:        time.Now().UTC(),
			CurrentOperation: "Sync queued",
		}
		return tx.Create(&run).Error
	})
	if err != nil {
		return nil, err
	}
	return &ProgressTracker{db: db, run: &run}, nil
}

func (t *ProgressTracker) RunID() int64 {
	return t.run.ID
}

// Run returns a copy of the tracked row as last written or accumulated.
func (t *ProgressTracker) Run() models.SyncRun {
	return *t.run
}

func (t *ProgressTracker) MarkRunning() error {
	now := time.Now().UTC()
	t.run.Status = models.SyncRunStatusRunning
	t.run.StartedAt = now
	return t.write(map[string]interface{}{
		"status":     t.run.Status,
		"started_at": now,
	})
}

// AdvancePhase moves the run to a new phase and records the
// human-readable operation shown on the dashboard.
func (t *ProgressTracker) AdvancePhase(phase string, operation string) error {
	now := time.Now().UTC()
	t.run.Phase = phase
	t.run.CurrentOperation = operation
	t.run.LastProgressAt = &now
	return t.write(map[string]interface{}{
		"phase":             phase,
		"current_operation": operation,
		"last_progress_at":  now,
	})
}

// SetTotal records the upstream total once the first page reveals it.
func (t *ProgressTracker) SetTotal(total int) error {
	t.run.TotalToProcess = total
	return t.write(map[string]interface{}{"total_to_process": total})
}

// AddFetched accounts for one fetched page.
func (t *ProgressTracker) AddFetched(count int) error {
	t.run.TotalPages++
	t.run.TotalFetched += count
	return t.write(map[string]interface{}{
		"total_pages":   t.run.TotalPages,
		"total_fetched": t.run.TotalFetched,
	})
}

// RecordItem counts one successfully reconciled record.
func (t *ProgressTracker) RecordItem(isNew, isUpdated bool) error {
	t.run.ProcessedCount++
	if isNew {
		t.run.NewCount++
	} else if isUpdated {
		t.run.UpdatedCount++
	}
	return t.maybeFlush()
}

// RecordError counts one record that failed and was skipped. Skipped
// records still count as processed so the progress bar reaches 100.
func (t *ProgressTracker) RecordError() error {
	t.run.ProcessedCount++
	t.run.ErrorCount++
	return t.maybeFlush()
}

func (t *ProgressTracker) maybeFlush() error {
	t.sinceFlush++
	if t.sinceFlush < progressFlushEvery {
		return nil
	}
	return t.Flush("")
}

// Flush writes the accumulated counters to the row. An empty operation
// keeps a generated progress line.
func (t *ProgressTracker) Flush(operation string) error {
	t.sinceFlush = 0
	if operation == "" {
		operation = fmt.Sprintf("Processing return %d of %d (%d new, %d updated)",
			t.run.ProcessedCount, t.run.TotalToProcess, t.run.NewCount, t.run.UpdatedCount)
	}
	now := time.Now().UTC()
	t.run.CurrentOperation = operation
	t.run.LastProgressAt = &now
	return t.write(map[string]interface{}{
		"processed_count":   t.run.ProcessedCount,
		"new_count":         t.run.NewCount,
		"updated_count":     t.run.UpdatedCount,
		"error_count":       t.run.ErrorCount,
		"current_operation": operation,
		"last_progress_at":  now,
	})
}

// Finish moves the run to a terminal status, flushing every counter.
// The row is never touched again afterward.
func (t *ProgressTracker) Finish(status string, errMsg string) error {
	now := time.Now().UTC()
	phase := models.SyncPhaseCompleted
	operation := fmt.Sprintf("Sync completed: %d new, %d updated, %d errors",
		t.run.NewCount, t.run.UpdatedCount, t.run.ErrorCount)
	switch status {
	case models.SyncRunStatusFailed:
		phase = models.SyncPhaseFailed
		operation = "Sync failed"
	case models.SyncRunStatusStopped:
		phase = models.SyncPhaseStopped
		operation = fmt.Sprintf("Sync stopped after %d of %d returns",
			t.run.ProcessedCount, t.run.TotalToProcess)
	}

	t.run.Status = status
	t.run.Phase = phase
	t.run.CompletedAt = &now
	t.run.ErrorMessage = errMsg
	t.run.CurrentOperation = operation
	t.run.LastProgressAt = &now
	t.sinceFlush = 0

	return t.write(map[string]interface{}{
		"status":            status,
		"phase":             phase,
		"completed_at":      now,
		"error_message":     errMsg,
		"current_operation": operation,
		"processed_count":   t.run.ProcessedCount,
		"new_count":         t.run.NewCount,
		"updated_count":     t.run.UpdatedCount,
		"error_count":       t.run.ErrorCount,
		"total_pages":       t.run.TotalPages,
		"total_fetched":     t.run.TotalFetched,
		"last_progress_at":  now,
	})
}

func (t *ProgressTracker) write(fields map[string]interface{}) error {
	return t.db.Model(&models.SyncRun{}).Where("id = ?", t.run.ID).Updates(fields).Error
}
