package returnsync

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
	"github.com/Uptime-ops/uptime-returns-sub000/warehance"
)

// reconcileReturn brings one return and its dependency graph in line
// with the API payload. It runs on the caller's transaction so a
// failure anywhere leaves no partial record behind.
//
// isNew reports an insert; isUpdated reports an existing row whose
// upstream updated_at differs from the stored one. Either way every
// mutable column is overwritten and last_synced_at is bumped.
func reconcileReturn(tx *gorm.DB, raw *warehance.ReturnRecord, now time.Time) (isNew bool, isUpdated bool, err error) {
	clientID, err := upsertClient(tx, raw.Client)
	if err != nil {
		return false, false, err
	}
	warehouseID, err := upsertWarehouse(tx, raw.Warehouse)
	if err != nil {
		return false, false, err
	}
	orderID, err := upsertOrder(tx, raw.Order)
	if err != nil {
		return false, false, err
	}
	integrationID, err := upsertReturnIntegration(tx, raw.ReturnIntegration)
	if err != nil {
		return false, false, err
	}

	createdAt := NormalizeTimestamp(raw.CreatedAt)
	updatedAt := NormalizeTimestamp(raw.UpdatedAt)
	processedAt := NormalizeTimestamp(raw.ProcessedAt)
	labelCost := parseLabelCost(raw.LabelCost.String())

	var existing models.Return
	err = tx.Where("id = ?", raw.ID).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ret := models.Return{
			ID:                  raw.ID,
			APIID:               raw.APIID,
			PaidBy:              raw.PaidBy,
			Status:              raw.Status,
			CreatedAt:           createdAt,
			UpdatedAt:           updatedAt,
			Processed:           raw.Processed,
			ProcessedAt:         processedAt,
			WarehouseNote:       raw.WarehouseNote,
			CustomerNote:        raw.CustomerNote,
			TrackingNumber:      raw.TrackingNumber,
			TrackingURL:         raw.TrackingURL,
			Carrier:             raw.Carrier,
			Service:             raw.Service,
			LabelCost:           labelCost,
			LabelPDFURL:         raw.LabelPDFURL,
			RMASlipURL:          raw.RMASlipURL,
			LabelVoided:         raw.LabelVoided,
			ClientID:            clientID,
			WarehouseID:         warehouseID,
			OrderID:             orderID,
			ReturnIntegrationID: integrationID,
			FirstSyncedAt:       now,
			LastSyncedAt:        now,
		}
		if err := tx.Create(&ret).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Racing writer inserted the same return first.
				return false, false, replaceReturnItems(tx, raw)
			}
			return false, false, err
		}
		isNew = true
	case err != nil:
		return false, false, err
	default:
		isUpdated = !timesEqual(existing.UpdatedAt, updatedAt)
		updates := map[string]interface{}{
			"api_id":                raw.APIID,
			"paid_by":               raw.PaidBy,
			"status":                raw.Status,
			"created_at":            createdAt,
			"updated_at":            updatedAt,
			"processed":             raw.Processed,
			"processed_at":          processedAt,
			"warehouse_note":        raw.WarehouseNote,
			"customer_note":         raw.CustomerNote,
			"tracking_number":       raw.TrackingNumber,
			"tracking_url":          raw.TrackingURL,
			"carrier":               raw.Carrier,
			"service":               raw.Service,
			"label_cost":            labelCost,
			"label_pdf_url":         raw.LabelPDFURL,
			"rma_slip_url":          raw.RMASlipURL,
			"label_voided":          raw.LabelVoided,
			"client_id":             clientID,
			"warehouse_id":          warehouseID,
			"order_id":              orderID,
			"return_integration_id": integrationID,
			"last_synced_at":        now,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return false, false, err
		}
	}

	if err := replaceReturnItems(tx, raw); err != nil {
		return isNew, isUpdated, err
	}
	return isNew, isUpdated, nil
}

// replaceReturnItems swaps the stored item set for the one in the
// payload. The API sends the full set every time, so the observed list
// is authoritative; an absent or empty list is a valid empty set.
func replaceReturnItems(tx *gorm.DB, raw *warehance.ReturnRecord) error {
	if err := tx.Where("return_id = ?", raw.ID).Delete(&models.ReturnItem{}).Error; err != nil {
		return err
	}
	if len(raw.Items) == 0 {
		return nil
	}

	items := make([]models.ReturnItem, 0, len(raw.Items))
	for _, rawItem := range raw.Items {
		productID, err := upsertProduct(tx, rawItem.Product)
		if err != nil {
			return err
		}
		items = append(items, models.ReturnItem{
			ID:                 rawItem.ID,
			ReturnID:           raw.ID,
			ProductID:          productID,
			Quantity:           rawItem.Quantity,
			QuantityReceived:   rawItem.QuantityReceived,
			QuantityRejected:   rawItem.QuantityRejected,
			ReturnReasons:      models.StringList(rawItem.ReturnReasons),
			ConditionOnArrival: models.StringList(rawItem.ConditionOnArrival),
		})
	}
	return tx.Create(&items).Error
}

func parseLabelCost(value string) decimal.NullDecimal {
	if value == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
