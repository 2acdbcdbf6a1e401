package returnsync

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
	"github.com/Uptime-ops/uptime-returns-sub000/warehance"
)

// The upsert helpers resolve a nested API payload into a local row and
// return its id for use as a foreign key. A nil payload resolves to a
// nil foreign key. All of them run on the caller's transaction; a
// duplicate-key error from a racing writer means the row already
// exists and is treated as success.

func upsertClient(tx *gorm.DB, ref *warehance.EntityRef) (*int64, error) {
	if ref == nil || ref.ID == 0 {
		return nil, nil
	}

	var existing models.Client
	err := tx.Where("id = ?", ref.ID).Take(&existing).Error
	if err == nil {
		if err := tx.Model(&existing).Update("name", ref.Name).Error; err != nil {
			return nil, err
		}
		return &ref.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	client := models.Client{ID: ref.ID, Name: ref.Name}
	if err := tx.Create(&client).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	id := ref.ID
	return &id, nil
}

func upsertWarehouse(tx *gorm.DB, ref *warehance.EntityRef) (*int64, error) {
	if ref == nil || ref.ID == 0 {
		return nil, nil
	}

	var existing models.Warehouse
	err := tx.Where("id = ?", ref.ID).Take(&existing).Error
	if err == nil {
		if err := tx.Model(&existing).Update("name", ref.Name).Error; err != nil {
			return nil, err
		}
		return &ref.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	warehouse := models.Warehouse{ID: ref.ID, Name: ref.Name}
	if err := tx.Create(&warehouse).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	id := ref.ID
	return &id, nil
}

func upsertStore(tx *gorm.DB, ref *warehance.EntityRef) (*int64, error) {
	if ref == nil || ref.ID == 0 {
		return nil, nil
	}

	var existing models.Store
	err := tx.Where("id = ?", ref.ID).Take(&existing).Error
	if err == nil {
		if err := tx.Model(&existing).Update("name", ref.Name).Error; err != nil {
			return nil, err
		}
		return &ref.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	store := models.Store{ID: ref.ID, Name: ref.Name}
	if err := tx.Create(&store).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	id := ref.ID
	return &id, nil
}

// upsertOrder records the order stub carried on a return. Customer
// names are filled in later by the order enrichment pass, so an update
// here never clears one.
func upsertOrder(tx *gorm.DB, ref *warehance.OrderRef) (*int64, error) {
	if ref == nil || ref.ID == 0 {
		return nil, nil
	}

	var existing models.Order
	err := tx.Where("id = ?", ref.ID).Take(&existing).Error
	if err == nil {
		if err := tx.Model(&existing).Update("order_number", ref.OrderNumber).Error; err != nil {
			return nil, err
		}
		return &ref.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order := models.Order{ID: ref.ID, OrderNumber: ref.OrderNumber}
	if err := tx.Create(&order).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	id := ref.ID
	return &id, nil
}

func upsertReturnIntegration(tx *gorm.DB, ref *warehance.IntegrationRef) (*int64, error) {
	if ref == nil || ref.ID == 0 {
		return nil, nil
	}

	storeID, err := upsertStore(tx, ref.Store)
	if err != nil {
		return nil, err
	}

	var existing models.ReturnIntegration
	err = tx.Where("id = ?", ref.ID).Take(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"name":                    ref.Name,
			"return_integration_type": ref.Type,
			"store_id":                storeID,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &ref.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	integration := models.ReturnIntegration{
		ID:              ref.ID,
		Name:            ref.Name,
		IntegrationType: ref.Type,
		StoreID:         storeID,
	}
	if err := tx.Create(&integration).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	id := ref.ID
	return &id, nil
}

// upsertProduct resolves by upstream id first and falls back to SKU,
// since some integrations send items keyed only one way. A payload
// carrying neither is malformed and fails the whole record.
func upsertProduct(tx *gorm.DB, ref *warehance.ProductRef) (*int64, error) {
	if ref == nil {
		return nil, nil
	}
	sku := strings.TrimSpace(ref.SKU)
	if ref.ID == 0 && sku == "" {
		return nil, fmt.Errorf("product payload has neither id nor sku")
	}

	if ref.ID != 0 {
		var existing models.Product
		err := tx.Where("id = ?", ref.ID).Take(&existing).Error
		if err == nil {
			updates := map[string]interface{}{"name": ref.Name}
			if sku != "" {
				updates["sku"] = sku
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return nil, err
			}
			id := existing.ID
			return &id, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if sku != "" {
		var existing models.Product
		err := tx.Where("sku = ?", sku).Take(&existing).Error
		if err == nil {
			if err := tx.Model(&existing).Update("name", ref.Name).Error; err != nil {
				return nil, err
			}
			id := existing.ID
			return &id, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	product := models.Product{ID: ref.ID, SKU: sku, Name: ref.Name}
	if product.SKU == "" {
		// SKU column is unique; synthesize one for id-only payloads.
		product.SKU = fmt.Sprintf("WH-%d", ref.ID)
	}
	if err := tx.Create(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Racing writer created the same product between our lookup
			// and the insert; read it back.
			var existing models.Product
			lookup := tx.Where("sku = ?", product.SKU)
			if ref.ID != 0 {
				lookup = tx.Where("id = ?", ref.ID)
			}
			if err := lookup.Take(&existing).Error; err != nil {
				return nil, err
			}
			id := existing.ID
			return &id, nil
		}
		return nil, err
	}
	id := product.ID
	return &id, nil
}
