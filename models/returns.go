package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StringList is an ordered string collection persisted as a JSON array, used
// for return_reasons and condition_on_arrival. Order is preserved as received
// from the upstream resource.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Return is the root aggregate of the reconciliation. CreatedAt/UpdatedAt are
// the upstream timestamps (nil when the upstream value was missing or
// unparseable), not row-management columns; first/last_synced_at track our own
// observations.
type Return struct {
	ID             int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	APIID          string     `gorm:"column:api_id;size:100" json:"api_id"`
	PaidBy         string     `gorm:"size:50" json:"paid_by"`
	Status         string     `gorm:"size:50;index" json:"status"`
	CreatedAt      *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	Processed      bool       `gorm:"default:false" json:"processed"`
	ProcessedAt    *time.Time `json:"processed_at"`
	WarehouseNote  string     `gorm:"type:text" json:"warehouse_note"`
	CustomerNote   string     `gorm:"type:text" json:"customer_note"`
	TrackingNumber string     `gorm:"size:255" json:"tracking_number"`
	TrackingURL    string     `gorm:"type:text" json:"tracking_url"`
	Carrier        string     `gorm:"size:100" json:"carrier"`
	Service        string     `gorm:"size:100" json:"service"`
	LabelCost      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"label_cost"`
	LabelPDFURL    string     `gorm:"column:label_pdf_url;type:text" json:"label_pdf_url"`
	RMASlipURL     string     `gorm:"column:rma_slip_url;type:text" json:"rma_slip_url"`
	LabelVoided    bool       `gorm:"default:false" json:"label_voided"`

	ClientID            *int64 `gorm:"index" json:"client_id"`
	WarehouseID         *int64 `gorm:"index" json:"warehouse_id"`
	OrderID             *int64 `gorm:"index" json:"order_id"`
	ReturnIntegrationID *int64 `gorm:"index" json:"return_integration_id"`

	FirstSyncedAt time.Time `json:"first_synced_at"`
	LastSyncedAt  time.Time `gorm:"index" json:"last_synced_at"`

	Client      *Client      `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Warehouse   *Warehouse   `gorm:"foreignKey:WarehouseID" json:"warehouse,omitempty"`
	Order       *Order       `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Items       []ReturnItem `gorm:"foreignKey:ReturnID" json:"items,omitempty"`
}

func (Return) TableName() string {
	return "returns"
}

// ReturnItem rows for a return are always a complete snapshot of the latest
// sync: the reconciler replaces the whole set, never merges.
type ReturnItem struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ReturnID           int64      `gorm:"index;not null;constraint:OnDelete:CASCADE" json:"return_id"`
	ProductID          *int64     `gorm:"index" json:"product_id"`
	Quantity           int        `json:"quantity"`
	QuantityReceived   int        `json:"quantity_received"`
	QuantityRejected   int        `json:"quantity_rejected"`
	ReturnReasons      StringList `gorm:"type:json" json:"return_reasons"`
	ConditionOnArrival StringList `gorm:"type:json" json:"condition_on_arrival"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (ReturnItem) TableName() string {
	return "return_items"
}
