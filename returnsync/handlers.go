package returnsync

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

// TriggerSyncHandler starts a background sync run. A trigger while a
// run is active answers 409 with the id of the active run.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		syncer := defaultSyncer()
		runID, err := syncer.Trigger(req.SyncType)
		if err != nil {
			if errors.Is(err, ErrSyncAlreadyRunning) {
				resp := TriggerSyncResponse{
					Status:  "error",
					Message: "a sync is already in progress",
				}
				if active, lookupErr := syncer.ActiveRun(); lookupErr == nil && active != nil {
					resp.SyncID = active.ID
				}
				c.JSON(http.StatusConflict, resp)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, TriggerSyncResponse{
			Status:  "started",
			Message: "Sync started in background",
			SyncID:  runID,
		})
	}
}

// SyncStatusHandler returns the latest run plus recent terminal runs.
func SyncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		syncer := defaultSyncer()
		current, history, err := syncer.Status(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SyncStatusResponse{
			Running: syncer.Active(),
			History: make([]SyncRunResponse, 0, len(history)),
		}
		if current != nil {
			mapped := mapRunToResponse(*current)
			resp.CurrentSync = &mapped
		}
		for _, run := range history {
			resp.History = append(resp.History, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// StopSyncHandler requests a graceful stop of the active run. Always
// 200; was_running says whether anything was there to stop.
func StopSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wasRunning := defaultSyncer().Stop()
		status := "stop_requested"
		if !wasRunning {
			status = "idle"
		}
		c.JSON(http.StatusOK, StopSyncResponse{
			Status:     status,
			WasRunning: wasRunning,
		})
	}
}

// SyncRunDetailHandler returns one run row by id.
func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var run models.SyncRun
		if err := defaultSyncer().db.Where("id = ?", id).Take(&run).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sync run not found"})
			return
		}
		c.JSON(http.StatusOK, mapRunToResponse(run))
	}
}
