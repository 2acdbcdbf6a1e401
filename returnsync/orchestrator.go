package returnsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/config"
	"github.com/Uptime-ops/uptime-returns-sub000/models"
	"github.com/Uptime-ops/uptime-returns-sub000/warehance"
)

const (
	defaultPageSize         = 100
	defaultOrderDetailLimit = 500
	orderFetchWorkers       = 4
)

// SyncerConfig tunes one Syncer. Zero fields fall back to environment
// variables and then to defaults.
type SyncerConfig struct {
	// PageSize is the limit passed to the returns endpoint (SYNC_PAGE_SIZE).
	PageSize int
	// MaxItems caps records processed per run, 0 for no cap (SYNC_MAX_ITEMS).
	MaxItems int
	// OrderDetailLimit caps order lookups in the enrichment pass
	// (SYNC_ORDER_DETAIL_LIMIT).
	OrderDetailLimit int
}

// Syncer owns the single background sync goroutine. Trigger starts a
// run if none is active, Stop requests a graceful halt at the next
// record boundary, and Status reads the run rows.
type Syncer struct {
	db  *gorm.DB
	api *warehance.Client
	log *logrus.Logger
	cfg SyncerConfig

	mu            sync.Mutex
	active        bool
	stopRequested atomic.Bool
}

func NewSyncer(db *gorm.DB, api *warehance.Client, cfg SyncerConfig) *Syncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = envInt("SYNC_PAGE_SIZE", defaultPageSize)
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = envInt("SYNC_MAX_ITEMS", 0)
	}
	if cfg.OrderDetailLimit <= 0 {
		cfg.OrderDetailLimit = envInt("SYNC_ORDER_DETAIL_LIMIT", defaultOrderDetailLimit)
	}
	return &Syncer{
		db:  db,
		api: api,
		log: config.GetLogger(),
		cfg: cfg,
	}
}

var (
	defaultSyncerOnce sync.Once
	defaultSyncerInst *Syncer
)

// defaultSyncer is the process-wide instance used by the HTTP
// handlers. It is created lazily so the database connection is
// established by the time the first request arrives. A missing API key
// leaves the instance without a client; Trigger reports it then.
func defaultSyncer() *Syncer {
	defaultSyncerOnce.Do(func() {
		api, err := warehance.NewClient(warehance.ClientConfig{})
		if err != nil {
			config.LogError(config.GetLogger(), "returnsync", "defaultSyncer", "client", nil, err)
		}
		defaultSyncerInst = NewSyncer(config.GetDB(), api, SyncerConfig{})
	})
	return defaultSyncerInst
}

// Trigger starts a sync run in the background and returns its id.
// Exactly one run may be active at a time; the in-memory flag and the
// persisted row check together reject concurrent triggers even right
// after a restart.
func (s *Syncer) Trigger(syncType string) (int64, error) {
	switch syncType {
	case models.SyncTypeFull, models.SyncTypeIncremental:
	case "":
		syncType = models.SyncTypeFull
	default:
		return 0, fmt.Errorf("unknown sync type %q", syncType)
	}
	if s.api == nil {
		return 0, errors.New("warehance api client is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return 0, ErrSyncAlreadyRunning
	}

	tracker, err := BeginRun(s.db, syncType)
	if err != nil {
		return 0, err
	}

	s.active = true
	s.stopRequested.Store(false)
	go s.run(tracker)
	return tracker.RunID(), nil
}

// Stop asks the active run to halt at the next record boundary. It
// reports whether a run was active; the run itself moves to stopped
// once it observes the flag.
func (s *Syncer) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.stopRequested.Store(true)
	return true
}

func (s *Syncer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveRun returns the persisted row of the run currently holding the
// slot, or nil when idle.
func (s *Syncer) ActiveRun() (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.Where("status IN ?", []string{models.SyncRunStatusPending, models.SyncRunStatusRunning}).
		Order("id desc").
		Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// Status returns the most recent run and the last terminal runs,
// newest first.
func (s *Syncer) Status(historyLimit int) (*models.SyncRun, []models.SyncRun, error) {
	if historyLimit <= 0 {
		historyLimit = 10
	}

	var latest models.SyncRun
	err := s.db.Order("id desc").Take(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	var current *models.SyncRun
	if err == nil {
		current = &latest
	}

	var history []models.SyncRun
	if err := s.db.Where("status IN ?", []string{
		models.SyncRunStatusCompleted,
		models.SyncRunStatusFailed,
		models.SyncRunStatusStopped,
	}).Order("id desc").Limit(historyLimit).Find(&history).Error; err != nil {
		return nil, nil, err
	}
	return current, history, nil
}

// run is the body of the background goroutine. Requests detach from it
// entirely, so it works on context.Background rather than any request
// context.
func (s *Syncer) run(tracker *ProgressTracker) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("sync goroutine panicked")
			_ = tracker.Finish(models.SyncRunStatusFailed, fmt.Sprintf("panic: %v", r))
		}
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	if err := tracker.MarkRunning(); err != nil {
		s.log.WithField("run_id", tracker.RunID()).Error(err)
	}
	if err := tracker.AdvancePhase(models.SyncPhaseInitializing, "Preparing database schema"); err != nil {
		s.log.WithField("run_id", tracker.RunID()).Error(err)
	}
	if err := models.MigrateTable(s.db); err != nil {
		config.LogError(s.log, "returnsync", "run", "migrate", nil, err)
		_ = tracker.Finish(models.SyncRunStatusFailed, err.Error())
		return
	}

	_ = tracker.AdvancePhase(models.SyncPhaseFetching, "Fetching returns from Warehance")

	var (
		offset        int
		processed     int
		recordedTotal = -1
		stopped       bool
		runErr        error
	)
	orderIDs := make(map[int64]struct{})

pages:
	for {
		if s.stopRequested.Load() {
			stopped = true
			break
		}

		page, err := s.api.FetchReturns(ctx, offset, s.cfg.PageSize)
		if err != nil {
			runErr = err
			break
		}
		if len(page.Returns) == 0 {
			break
		}

		total := page.TotalCount
		if s.cfg.MaxItems > 0 && total > s.cfg.MaxItems {
			total = s.cfg.MaxItems
		}
		// Upstream data can grow between page fetches. Termination uses
		// the current page's total, so the persisted total must follow
		// it or processed_count would overrun it.
		if total > recordedTotal {
			_ = tracker.SetTotal(total)
			recordedTotal = total
		}
		_ = tracker.AddFetched(len(page.Returns))
		_ = tracker.AdvancePhase(models.SyncPhaseProcessing,
			fmt.Sprintf("Processing %d returns from offset %d", len(page.Returns), offset))

		for i := range page.Returns {
			if s.stopRequested.Load() {
				stopped = true
				break pages
			}
			if s.cfg.MaxItems > 0 && processed >= s.cfg.MaxItems {
				break pages
			}

			raw := &page.Returns[i]
			isNew, isUpdated, err := s.processRecord(raw)
			if err != nil {
				config.LogError(s.log, "returnsync", "run", "reconcile",
					map[string]interface{}{"return_id": raw.ID}, err)
				_ = tracker.RecordError()
			} else {
				_ = tracker.RecordItem(isNew, isUpdated)
				if raw.Order != nil && raw.Order.ID != 0 {
					orderIDs[raw.Order.ID] = struct{}{}
				}
			}
			processed++
		}

		offset += s.cfg.PageSize
		if page.TotalCount > 0 && offset >= page.TotalCount {
			break
		}
	}

	if runErr != nil {
		config.LogError(s.log, "returnsync", "run", "fetch",
			map[string]interface{}{"offset": offset}, runErr)
		_ = tracker.Flush("")
		_ = tracker.Finish(models.SyncRunStatusFailed, runErr.Error())
		return
	}

	if !stopped {
		s.enrichOrders(ctx, tracker, orderIDs)
		stopped = s.stopRequested.Load()
	}

	_ = tracker.Flush("")
	if stopped {
		_ = tracker.Finish(models.SyncRunStatusStopped, "")
		return
	}
	_ = tracker.Finish(models.SyncRunStatusCompleted, "")
}

// processRecord reconciles one return inside its own transaction so a
// bad record rolls back completely without touching its neighbors.
func (s *Syncer) processRecord(raw *warehance.ReturnRecord) (isNew bool, isUpdated bool, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		isNew, isUpdated, txErr = reconcileReturn(tx, raw, time.Now().UTC())
		return txErr
	})
	return isNew, isUpdated, err
}

// enrichOrders backfills customer names for orders first seen during
// this run. Order details come from a separate endpoint, so lookups
// run on a small worker pool; all database writes stay on this
// goroutine. Failures here degrade the data, never the run.
func (s *Syncer) enrichOrders(ctx context.Context, tracker *ProgressTracker, ids map[int64]struct{}) {
	if len(ids) == 0 {
		return
	}

	candidates := make([]int64, 0, len(ids))
	for id := range ids {
		candidates = append(candidates, id)
	}

	var pending []int64
	if err := s.db.Model(&models.Order{}).
		Where("id IN ? AND (customer_name IS NULL OR customer_name = '')", candidates).
		Limit(s.cfg.OrderDetailLimit).
		Pluck("id", &pending).Error; err != nil {
		config.LogError(s.log, "returnsync", "enrichOrders", "select", nil, err)
		return
	}
	if len(pending) == 0 {
		return
	}

	_ = tracker.AdvancePhase(models.SyncPhaseProcessing,
		fmt.Sprintf("Fetching customer info for %d orders", len(pending)))

	type orderResult struct {
		id     int64
		detail *warehance.OrderDetail
		err    error
	}

	jobs := make(chan int64)
	results := make(chan orderResult)

	workers := orderFetchWorkers
	if workers > len(pending) {
		workers = len(pending)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				detail, err := s.api.FetchOrder(ctx, id)
				results <- orderResult{id: id, detail: detail, err: err}
			}
		}()
	}
	go func() {
		for _, id := range pending {
			if s.stopRequested.Load() {
				break
			}
			jobs <- id
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			s.log.WithFields(logrus.Fields{"order_id": res.id}).Warn(res.err)
			continue
		}
		name := res.detail.CustomerName()
		if name == "" {
			continue
		}
		if err := s.db.Model(&models.Order{}).
			Where("id = ?", res.id).
			Update("customer_name", name).Error; err != nil {
			config.LogError(s.log, "returnsync", "enrichOrders", "update",
				map[string]interface{}{"order_id": res.id}, err)
		}
	}
}

func envInt(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
