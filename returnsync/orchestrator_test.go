package returnsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
	"github.com/Uptime-ops/uptime-returns-sub000/warehance"
)

// fakeAPI serves canned /returns pages and /orders/{id} details the
// way the real service does.
type fakeAPI struct {
	t        *testing.T
	pageSize int
	returns  []*warehance.ReturnRecord
	orders   map[int64]string

	// onPage, when set, is called with the page offset before the
	// response is written.
	onPage func(offset int)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/returns", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit != f.pageSize {
			f.t.Errorf("limit = %d, want %d", limit, f.pageSize)
		}
		if f.onPage != nil {
			f.onPage(offset)
		}

		end := offset + limit
		if end > len(f.returns) {
			end = len(f.returns)
		}
		var page []*warehance.ReturnRecord
		if offset < len(f.returns) {
			page = f.returns[offset:end]
		}
		writeJSON(w, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"returns":     page,
				"total_count": len(f.returns),
			},
		})
	})
	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/orders/"), 10, 64)
		name, ok := f.orders[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		parts := strings.SplitN(name, " ", 2)
		last := ""
		if len(parts) == 2 {
			last = parts[1]
		}
		writeJSON(w, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"id":              id,
				"ship_to_address": map[string]string{"first_name": parts[0], "last_name": last},
			},
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSyncer(t *testing.T, db *gorm.DB, api *fakeAPI, cfg SyncerConfig) *Syncer {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := warehance.NewClient(warehance.ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = api.pageSize
	}
	return NewSyncer(db, client, cfg)
}

func waitForIdle(t *testing.T, s *Syncer) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !s.Active() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sync did not finish in time")
}

func latestRun(t *testing.T, db *gorm.DB) models.SyncRun {
	t.Helper()
	var run models.SyncRun
	if err := db.Order("id desc").Take(&run).Error; err != nil {
		t.Fatalf("load latest run: %v", err)
	}
	return run
}

func TestSyncerFullRun(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2), sampleReturn(3)},
		orders:   map[int64]string{9001: "Ada Lovelace", 9002: "Grace Hopper", 9003: "Mary Jackson"},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	runID, err := s.Trigger(models.SyncTypeFull)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.ID != runID {
		t.Errorf("latest run id = %d, want %d", run.ID, runID)
	}
	if run.Status != models.SyncRunStatusCompleted || run.Phase != models.SyncPhaseCompleted {
		t.Fatalf("run = %s/%s (%s), want completed", run.Status, run.Phase, run.ErrorMessage)
	}
	if run.TotalToProcess != 3 || run.ProcessedCount != 3 || run.NewCount != 3 {
		t.Errorf("counters = total %d processed %d new %d, want 3/3/3",
			run.TotalToProcess, run.ProcessedCount, run.NewCount)
	}
	if run.TotalPages != 2 || run.TotalFetched != 3 {
		t.Errorf("pages/fetched = %d/%d, want 2/3", run.TotalPages, run.TotalFetched)
	}
	if run.ErrorCount != 0 {
		t.Errorf("error_count = %d, want 0", run.ErrorCount)
	}

	if got := countRows(t, db, &models.Return{}); got != 3 {
		t.Errorf("returns = %d, want 3", got)
	}

	var order models.Order
	if err := db.Where("id = ?", 9001).Take(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.CustomerName != "Ada Lovelace" {
		t.Errorf("customer name = %q, want enriched", order.CustomerName)
	}
}

func TestSyncerRerunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2)},
		orders:   map[int64]string{},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	waitForIdle(t, s)

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusCompleted {
		t.Fatalf("second run = %s (%s)", run.Status, run.ErrorMessage)
	}
	if run.NewCount != 0 || run.UpdatedCount != 0 {
		t.Errorf("second run new/updated = %d/%d, want 0/0", run.NewCount, run.UpdatedCount)
	}
	if got := countRows(t, db, &models.Return{}); got != 2 {
		t.Errorf("returns = %d, want 2", got)
	}
}

func TestSyncerDuplicateAcrossPages(t *testing.T) {
	db := newTestDB(t)
	// The same return id straddles a page boundary, as happens when
	// upstream data shifts between page fetches.
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2), sampleReturn(2)},
		orders:   map[int64]string{},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusCompleted {
		t.Fatalf("run = %s (%s)", run.Status, run.ErrorMessage)
	}
	if got := countRows(t, db, &models.Return{}); got != 2 {
		t.Errorf("returns = %d, want 2 distinct", got)
	}
	if run.NewCount != 2 {
		t.Errorf("new_count = %d, want 2", run.NewCount)
	}
	if run.ErrorCount != 0 {
		t.Errorf("error_count = %d, want 0", run.ErrorCount)
	}
}

func TestSyncerTotalGrowsMidRun(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2), sampleReturn(3)},
		orders:   map[int64]string{},
	}
	// A new return lands upstream after the first page is served, so
	// the second page reports a larger total_count.
	api.onPage = func(offset int) {
		if offset > 0 && len(api.returns) == 3 {
			api.returns = append(api.returns, sampleReturn(4))
		}
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusCompleted {
		t.Fatalf("run = %s (%s)", run.Status, run.ErrorMessage)
	}
	if run.ProcessedCount > run.TotalToProcess {
		t.Fatalf("processed_count %d exceeds total_to_process %d",
			run.ProcessedCount, run.TotalToProcess)
	}
	if run.TotalToProcess != 4 || run.ProcessedCount != 4 {
		t.Errorf("total/processed = %d/%d, want 4/4", run.TotalToProcess, run.ProcessedCount)
	}
	if got := countRows(t, db, &models.Return{}); got != 4 {
		t.Errorf("returns = %d, want 4", got)
	}
}

func TestSyncerSingleFlight(t *testing.T) {
	db := newTestDB(t)
	firstPage := make(chan struct{})
	proceed := make(chan struct{})
	var gate sync.Once
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1)},
		orders:   map[int64]string{},
		onPage: func(offset int) {
			gate.Do(func() {
				close(firstPage)
				<-proceed
			})
		},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-firstPage

	if _, err := s.Trigger(models.SyncTypeFull); !errors.Is(err, ErrSyncAlreadyRunning) {
		t.Errorf("concurrent Trigger err = %v, want ErrSyncAlreadyRunning", err)
	}

	close(proceed)
	waitForIdle(t, s)

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Errorf("Trigger after completion: %v", err)
	}
	waitForIdle(t, s)
}

func TestSyncerPerItemIsolation(t *testing.T) {
	db := newTestDB(t)
	bad := sampleReturn(2)
	bad.Items[0].Product = &warehance.ProductRef{Name: "no identity"}
	api := &fakeAPI{
		t:        t,
		pageSize: 10,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), bad, sampleReturn(3)},
		orders:   map[int64]string{},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusCompleted {
		t.Fatalf("run = %s (%s), one bad record must not fail the run", run.Status, run.ErrorMessage)
	}
	if run.ErrorCount != 1 {
		t.Errorf("error_count = %d, want 1", run.ErrorCount)
	}
	if run.NewCount != 2 {
		t.Errorf("new_count = %d, want 2", run.NewCount)
	}
	if got := countRows(t, db, &models.Return{}); got != 2 {
		t.Errorf("returns = %d, want 2", got)
	}
	var missing models.Return
	err := db.Where("id = ?", 2).Take(&missing).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("bad record must not be stored, err = %v", err)
	}
}

func TestSyncerFatalAPIErrorFailsRun(t *testing.T) {
	db := newTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client, err := warehance.NewClient(warehance.ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "bad-key",
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	s := NewSyncer(db, client, SyncerConfig{PageSize: 2})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusFailed || run.Phase != models.SyncPhaseFailed {
		t.Fatalf("run = %s/%s, want failed", run.Status, run.Phase)
	}
	if run.ErrorMessage == "" {
		t.Error("failed run must carry an error message")
	}
	if run.CompletedAt == nil {
		t.Error("failed run must carry completed_at")
	}
}

func TestSyncerStop(t *testing.T) {
	db := newTestDB(t)
	secondPage := make(chan struct{})
	stopIssued := make(chan struct{})
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2), sampleReturn(3), sampleReturn(4)},
		orders:   map[int64]string{},
	}
	api.onPage = func(offset int) {
		if offset > 0 {
			select {
			case <-secondPage:
			default:
				close(secondPage)
				<-stopIssued
			}
		}
	}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-secondPage
	if !s.Stop() {
		t.Fatal("Stop during active run must report true")
	}
	close(stopIssued)
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusStopped || run.Phase != models.SyncPhaseStopped {
		t.Fatalf("run = %s/%s, want stopped", run.Status, run.Phase)
	}
	if run.ProcessedCount != 2 {
		t.Errorf("processed before stop = %d, want 2", run.ProcessedCount)
	}

	if s.Stop() {
		t.Error("Stop on idle syncer must report false")
	}
}

func TestSyncerMaxItemsCap(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{
		t:        t,
		pageSize: 2,
		returns:  []*warehance.ReturnRecord{sampleReturn(1), sampleReturn(2), sampleReturn(3), sampleReturn(4)},
		orders:   map[int64]string{},
	}
	s := newTestSyncer(t, db, api, SyncerConfig{MaxItems: 3})

	if _, err := s.Trigger(models.SyncTypeFull); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForIdle(t, s)

	run := latestRun(t, db)
	if run.Status != models.SyncRunStatusCompleted {
		t.Fatalf("run = %s (%s)", run.Status, run.ErrorMessage)
	}
	if run.TotalToProcess != 3 {
		t.Errorf("total_to_process = %d, want capped 3", run.TotalToProcess)
	}
	if run.ProcessedCount != 3 {
		t.Errorf("processed = %d, want 3", run.ProcessedCount)
	}
	if got := countRows(t, db, &models.Return{}); got != 3 {
		t.Errorf("returns = %d, want 3", got)
	}
}

func TestTriggerRejectsUnknownSyncType(t *testing.T) {
	db := newTestDB(t)
	api := &fakeAPI{t: t, pageSize: 2, orders: map[int64]string{}}
	s := newTestSyncer(t, db, api, SyncerConfig{})

	if _, err := s.Trigger("bogus"); err == nil {
		t.Fatal("expected error for unknown sync type")
	}
	if s.Active() {
		t.Error("rejected trigger must not mark the syncer active")
	}
}
