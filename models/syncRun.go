package models

import "time"

const (
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"
)

const (
	SyncRunStatusPending   = "pending"
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
	SyncRunStatusStopped   = "stopped"
)

const (
	SyncPhaseInitializing = "initializing"
	SyncPhaseFetching     = "fetching"
	SyncPhaseProcessing   = "processing"
	SyncPhaseCompleted    = "completed"
	SyncPhaseFailed       = "failed"
	SyncPhaseStopped      = "stopped"
)

// SyncRun is one row per sync invocation. The orchestrator creates it at
// trigger time, the progress tracker mutates it during the run, and it becomes
// immutable once terminal. At most one row is ever in status running.
type SyncRun struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	SyncType         string     `gorm:"size:50;not null" json:"sync_type"`
	Status           string     `gorm:"size:20;index;not null" json:"status"`
	Phase            string     `gorm:"size:50;not null" json:"phase"`
	StartedAt        time.Time  `gorm:"index" json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	TotalPages       int        `json:"total_pages"`
	TotalFetched     int        `json:"total_fetched"`
	TotalToProcess   int        `json:"total_to_process"`
	ProcessedCount   int        `json:"processed_count"`
	NewCount         int        `json:"new_count"`
	UpdatedCount     int        `json:"updated_count"`
	ErrorCount       int        `json:"error_count"`
	CurrentOperation string     `gorm:"size:500" json:"current_operation"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	LastProgressAt   *time.Time `json:"last_progress_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

func (r *SyncRun) Terminal() bool {
	switch r.Status {
	case SyncRunStatusCompleted, SyncRunStatusFailed, SyncRunStatusStopped:
		return true
	}
	return false
}

// ProgressPercentage is 0 until the total is known; readers tolerate
// eventually-consistent counters while a run is active.
func (r *SyncRun) ProgressPercentage() float64 {
	if r.TotalToProcess <= 0 {
		return 0
	}
	pct := float64(r.ProcessedCount) / float64(r.TotalToProcess) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
