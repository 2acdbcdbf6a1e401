package models

import "time"

// Reference entities are keyed by the upstream Warehance id. Ids can exceed
// 32-bit range, so every foreign key is int64. The sync engine only ever
// creates or overwrites these rows, never deletes them.

type Client struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Warehouse struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Store is only ever referenced through a ReturnIntegration.
type Store struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReturnIntegration struct {
	ID              int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	IntegrationType string    `gorm:"column:return_integration_type;size:100" json:"return_integration_type"`
	StoreID         *int64    `gorm:"index" json:"store_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Order struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrderNumber string    `gorm:"size:100;not null" json:"order_number"`
	// CustomerName is derived from the order detail's ship_to_address and
	// filled in by the enrichment pass; empty until then.
	CustomerName string    `gorm:"size:255" json:"customer_name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Product may arrive without an upstream id; in that case it is keyed by SKU
// and a surrogate id is generated on first insert.
type Product struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	SKU       string    `gorm:"column:sku;size:100;uniqueIndex;not null" json:"sku"`
	Name      string    `gorm:"size:500;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
