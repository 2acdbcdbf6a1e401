package returnsync

import (
	"time"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

type TriggerSyncRequest struct {
	SyncType string `json:"sync_type" binding:"omitempty,oneof=full incremental"`
}

type TriggerSyncResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	SyncID  int64  `json:"sync_id,omitempty"`
}

type StopSyncResponse struct {
	Status     string `json:"status"`
	WasRunning bool   `json:"was_running"`
}

type SyncRunResponse struct {
	ID                 int64   `json:"id"`
	SyncType           string  `json:"sync_type"`
	Status             string  `json:"status"`
	Phase              string  `json:"phase"`
	StartedAt          string  `json:"started_at"`
	CompletedAt        *string `json:"completed_at"`
	TotalPages         int     `json:"total_pages"`
	TotalFetched       int     `json:"total_fetched"`
	TotalToProcess     int     `json:"total_to_process"`
	ProcessedCount     int     `json:"processed_count"`
	NewCount           int     `json:"new_count"`
	UpdatedCount       int     `json:"updated_count"`
	ErrorCount         int     `json:"error_count"`
	ProgressPercentage float64 `json:"progress_percentage"`
	CurrentOperation   string  `json:"current_operation"`
	ErrorMessage       string  `json:"error_message,omitempty"`
	LastProgressAt     *string `json:"last_progress_at"`
}

type SyncStatusResponse struct {
	Running     bool              `json:"running"`
	CurrentSync *SyncRunResponse  `json:"current_sync"`
	History     []SyncRunResponse `json:"history"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	started := run.StartedAt
	return SyncRunResponse{
		ID:                 run.ID,
		SyncType:           run.SyncType,
		Status:             run.Status,
		Phase:              run.Phase,
		StartedAt:          started.UTC().Format(time.RFC3339),
		CompletedAt:        formatTime(run.CompletedAt),
		TotalPages:         run.TotalPages,
		TotalFetched:       run.TotalFetched,
		TotalToProcess:     run.TotalToProcess,
		ProcessedCount:     run.ProcessedCount,
		NewCount:           run.NewCount,
		UpdatedCount:       run.UpdatedCount,
		ErrorCount:         run.ErrorCount,
		ProgressPercentage: run.ProgressPercentage(),
		CurrentOperation:   run.CurrentOperation,
		ErrorMessage:       run.ErrorMessage,
		LastProgressAt:     formatTime(run.LastProgressAt),
	}
}
