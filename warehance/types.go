package warehance

import (
	"encoding/json"
	"strings"
)

// Typed payloads for the Warehance v1 API. Decoding into these at the client
// boundary means shape mismatches surface as errors here instead of nil maps
// further down the pipeline.

const statusSuccess = "success"

type listEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    returnsData `json:"data"`
}

type returnsData struct {
	Returns    []ReturnRecord `json:"returns"`
	TotalCount int            `json:"total_count"`
}

// ReturnsPage is one page of the paginated /returns resource.
type ReturnsPage struct {
	Returns    []ReturnRecord
	TotalCount int
}

type ReturnRecord struct {
	ID             int64       `json:"id"`
	APIID          string      `json:"api_id"`
	PaidBy         string      `json:"paid_by"`
	Status         string      `json:"status"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
	Processed      bool        `json:"processed"`
	ProcessedAt    string      `json:"processed_at"`
	WarehouseNote  string      `json:"warehouse_note"`
	CustomerNote   string      `json:"customer_note"`
	TrackingNumber string      `json:"tracking_number"`
	TrackingURL    string      `json:"tracking_url"`
	Carrier        string      `json:"carrier"`
	Service        string      `json:"service"`
	LabelCost      json.Number `json:"label_cost"`
	LabelPDFURL    string      `json:"label_pdf_url"`
	RMASlipURL     string      `json:"rma_slip_url"`
	LabelVoided    bool        `json:"label_voided"`

	Client            *EntityRef      `json:"client"`
	Warehouse         *EntityRef      `json:"warehouse"`
	Order             *OrderRef       `json:"order"`
	ReturnIntegration *IntegrationRef `json:"return_integration"`

	Items []ReturnItemRecord `json:"items"`
}

// EntityRef is the nested id+name shape shared by client, warehouse and store
// payloads.
type EntityRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type OrderRef struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
}

type IntegrationRef struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Type  string     `json:"return_integration_type"`
	Store *EntityRef `json:"store"`
}

type ReturnItemRecord struct {
	ID                 int64       `json:"id"`
	Product            *ProductRef `json:"product"`
	Quantity           int         `json:"quantity"`
	QuantityReceived   int         `json:"quantity_received"`
	QuantityRejected   int         `json:"quantity_rejected"`
	ReturnReasons      []string    `json:"return_reasons"`
	ConditionOnArrival []string    `json:"condition_on_arrival"`
}

type ProductRef struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

type orderEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    OrderDetail `json:"data"`
}

// OrderDetail is the /orders/{id} payload, fetched during the enrichment pass
// to fill in customer names.
type OrderDetail struct {
	ID            int64          `json:"id"`
	OrderNumber   string         `json:"order_number"`
	Status        string         `json:"status"`
	ShipToAddress *ShipToAddress `json:"ship_to_address"`
}

type ShipToAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CustomerName joins the shipping-address name parts; empty when the order
// carries no address.
func (d *OrderDetail) CustomerName() string {
	if d == nil || d.ShipToAddress == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(d.ShipToAddress.FirstName) + " " + strings.TrimSpace(d.ShipToAddress.LastName))
}
