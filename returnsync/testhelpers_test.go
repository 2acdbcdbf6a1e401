package returnsync

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/config"
	"github.com/Uptime-ops/uptime-returns-sub000/models"
	"github.com/Uptime-ops/uptime-returns-sub000/warehance"
)

var testDBSeq atomic.Int64

// newTestDB opens a named in-memory database. The name keeps the pool's
// connections on the same database while isolating tests from each other.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:returnsync_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// sampleReturn builds a full payload the way the API sends it. Tests
// mutate the result to probe individual fields.
func sampleReturn(id int64) *warehance.ReturnRecord {
	return &warehance.ReturnRecord{
		ID:             id,
		APIID:          fmt.Sprintf("ret_%d", id),
		PaidBy:         "merchant",
		Status:         "pending",
		CreatedAt:      "2024-01-15T10:30:00Z",
		UpdatedAt:      "2024-02-01T08:00:00Z",
		Processed:      false,
		TrackingNumber: fmt.Sprintf("TRACK%d", id),
		Carrier:        "UPS",
		Service:        "Ground",
		LabelCost:      json.Number("12.50"),
		Client:         &warehance.EntityRef{ID: 7, Name: "Acme"},
		Warehouse:      &warehance.EntityRef{ID: 3, Name: "East"},
		Order:          &warehance.OrderRef{ID: 9000 + id, OrderNumber: fmt.Sprintf("SO-%d", id)},
		ReturnIntegration: &warehance.IntegrationRef{
			ID:    21,
			Name:  "Shopify US",
			Type:  "shopify",
			Store: &warehance.EntityRef{ID: 31, Name: "acme-us"},
		},
		Items: []warehance.ReturnItemRecord{
			{
				ID:                 id*10 + 1,
				Product:            &warehance.ProductRef{ID: 501, SKU: "SKU-501", Name: "Widget"},
				Quantity:           2,
				QuantityReceived:   1,
				ReturnReasons:      []string{"damaged"},
				ConditionOnArrival: []string{"opened"},
			},
			{
				ID:            id*10 + 2,
				Product:       &warehance.ProductRef{ID: 502, SKU: "SKU-502", Name: "Gadget"},
				Quantity:      1,
				ReturnReasons: []string{"wrong item", "damaged"},
			},
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
