package dashboard

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/config"
	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

// StatsHandler aggregates the counters shown on the dashboard landing
// page. Time windows are computed in Go so the same queries run on
// every backing database.
func StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var stats StatsResponse
		queries := []struct {
			dst   *int64
			query *gorm.DB
		}{
			{&stats.TotalReturns, db.Model(&models.Return{})},
			{&stats.PendingReturns, db.Model(&models.Return{}).Where("processed = ?", false)},
			{&stats.ProcessedReturns, db.Model(&models.Return{}).Where("processed = ?", true)},
			{&stats.TotalClients, db.Model(&models.Client{})},
			{&stats.TotalWarehouses, db.Model(&models.Warehouse{})},
		}
		for _, q := range queries {
			if err := q.query.Count(q.dst).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		now := time.Now().UTC()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		windows := []struct {
			dst   *int64
			since time.Time
		}{
			{&stats.ReturnsToday, dayStart},
			{&stats.ReturnsThisWeek, now.AddDate(0, 0, -7)},
			{&stats.ReturnsThisMonth, now.AddDate(0, 0, -30)},
		}
		for _, w := range windows {
			if err := db.Model(&models.Return{}).
				Where("created_at >= ?", w.since).
				Count(w.dst).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		var lastRun models.SyncRun
		err := db.Where("status = ?", models.SyncRunStatusCompleted).
			Order("completed_at desc").
			Take(&lastRun).Error
		if err == nil {
			stats.LastSync = formatTime(lastRun.CompletedAt)
		}

		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

func ClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		var clients []models.Client
		if err := db.Order("name asc").Find(&clients).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": clients})
	}
}

func WarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		var warehouses []models.Warehouse
		if err := db.Order("name asc").Find(&warehouses).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"warehouses": warehouses})
	}
}

// applyReturnFilters builds the filtered base query shared by search
// and export. The clients join is always present so free-text search
// can match on client name.
func applyReturnFilters(db *gorm.DB, req SearchReturnsRequest) *gorm.DB {
	q := db.Model(&models.Return{}).
		Joins("LEFT JOIN clients ON clients.id = returns.client_id")

	if req.ClientID != 0 {
		q = q.Where("returns.client_id = ?", req.ClientID)
	}
	if req.WarehouseID != 0 {
		q = q.Where("returns.warehouse_id = ?", req.WarehouseID)
	}
	switch req.Status {
	case "":
	case "pending":
		q = q.Where("returns.processed = ?", false)
	case "processed":
		q = q.Where("returns.processed = ?", true)
	default:
		q = q.Where("returns.status = ?", req.Status)
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + search + "%"
		q = q.Where("returns.tracking_number LIKE ? OR CAST(returns.id AS CHAR) LIKE ? OR clients.name LIKE ?",
			like, like, like)
	}
	if from, err := time.Parse("2006-01-02", req.DateFrom); err == nil {
		q = q.Where("returns.created_at >= ?", from)
	}
	if to, err := time.Parse("2006-01-02", req.DateTo); err == nil {
		q = q.Where("returns.created_at < ?", to.AddDate(0, 0, 1))
	}
	return q
}

// SearchReturnsHandler is the paginated dashboard listing.
func SearchReturnsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchReturnsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.Page < 1 {
			req.Page = 1
		}
		if req.Limit < 1 || req.Limit > 200 {
			req.Limit = 20
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var total int64
		if err := applyReturnFilters(db, req).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var returns []models.Return
		if err := applyReturnFilters(db, req).
			Preload("Client").
			Preload("Warehouse").
			Preload("Order").
			Order("returns.created_at DESC, returns.id DESC").
			Limit(req.Limit).
			Offset((req.Page - 1) * req.Limit).
			Find(&returns).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SearchReturnsResponse{
			Returns:    make([]ReturnSummary, 0, len(returns)),
			TotalCount: total,
			Page:       req.Page,
			Limit:      req.Limit,
			TotalPages: int((total + int64(req.Limit) - 1) / int64(req.Limit)),
		}
		if resp.TotalPages < 1 {
			resp.TotalPages = 1
		}
		for _, ret := range returns {
			resp.Returns = append(resp.Returns, mapReturnToSummary(ret))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ReturnDetailHandler returns one return with its item set.
func ReturnDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var ret models.Return
		err = db.Preload("Client").
			Preload("Warehouse").
			Preload("Order").
			Preload("Items").
			Preload("Items.Product").
			Where("id = ?", id).
			Take(&ret).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "return not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, mapReturnToDetail(ret))
	}
}

// ReturnReasonsHandler aggregates reason frequency across all items.
// Reasons are stored as JSON arrays, so the fan-out happens in Go.
func ReturnReasonsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var items []models.ReturnItem
		if err := db.Select("return_reasons").
			Where("return_reasons IS NOT NULL").
			Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		counts := make(map[string]int)
		for _, item := range items {
			for _, reason := range item.ReturnReasons {
				counts[reason]++
			}
		}

		result := make([]ReasonCount, 0, len(counts))
		for reason, count := range counts {
			result = append(result, ReasonCount{Reason: reason, Count: count})
		}
		sort.Slice(result, func(i, j int) bool {
			if result[i].Count != result[j].Count {
				return result[i].Count > result[j].Count
			}
			return result[i].Reason < result[j].Reason
		})
		if len(result) > 20 {
			result = result[:20]
		}
		c.JSON(http.StatusOK, result)
	}
}

// TopReturnedProductsHandler lists the products with the highest
// returned quantity.
func TopReturnedProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var products []TopReturnedProduct
		err := db.Table("return_items").
			Select("products.sku, products.name, SUM(return_items.quantity) AS total_quantity, COUNT(return_items.id) AS return_count").
			Joins("JOIN products ON products.id = return_items.product_id").
			Group("products.id, products.sku, products.name").
			Order("total_quantity DESC").
			Limit(10).
			Scan(&products).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// SettingsHandler returns every stored setting as a flat object.
func SettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var settings []models.Setting
		if err := db.Order("setting_key asc").Find(&settings).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make(map[string]string, len(settings))
		for _, s := range settings {
			out[s.Key] = s.Value
		}
		c.JSON(http.StatusOK, gin.H{"settings": out})
	}
}

// SettingHandler returns one setting by key.
func SettingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Param("key"))
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		value, found, err := models.GetSetting(db, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
	}
}

// UpdateSettingsHandler upserts the posted key/value pairs.
func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req map[string]string
		if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		for key, value := range req {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if err := models.PutSetting(db, key, value); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "saved"})
	}
}
