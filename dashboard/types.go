package dashboard

import (
	"time"

	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

type SearchReturnsRequest struct {
	Page        int    `json:"page" binding:"omitempty,min=1"`
	Limit       int    `json:"limit" binding:"omitempty,min=1,max=200"`
	ClientID    int64  `json:"client_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Status      string `json:"status"`
	Search      string `json:"search"`
	DateFrom    string `json:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo      string `json:"date_to" binding:"omitempty,datetime=2006-01-02"`
}

type SearchReturnsResponse struct {
	Returns    []ReturnSummary `json:"returns"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

type ReturnSummary struct {
	ID             int64   `json:"id"`
	APIID          string  `json:"api_id"`
	PaidBy         string  `json:"paid_by"`
	Status         string  `json:"status"`
	CreatedAt      *string `json:"created_at"`
	UpdatedAt      *string `json:"updated_at"`
	Processed      bool    `json:"processed"`
	TrackingNumber string  `json:"tracking_number"`
	TrackingURL    string  `json:"tracking_url"`
	Carrier        string  `json:"carrier"`
	Service        string  `json:"service"`
	LabelCost      *string `json:"label_cost"`
	ClientName     string  `json:"client_name"`
	WarehouseName  string  `json:"warehouse_name"`
	OrderNumber    string  `json:"order_number"`
	CustomerName   string  `json:"customer_name"`
	LastSyncedAt   string  `json:"last_synced_at"`
}

type ReturnDetailResponse struct {
	ReturnSummary
	ProcessedAt   *string          `json:"processed_at"`
	WarehouseNote string           `json:"warehouse_note"`
	CustomerNote  string           `json:"customer_note"`
	LabelPDFURL   string           `json:"label_pdf_url"`
	RMASlipURL    string           `json:"rma_slip_url"`
	LabelVoided   bool             `json:"label_voided"`
	Items         []ReturnItemView `json:"items"`
}

type ReturnItemView struct {
	ID                 int64    `json:"id"`
	ProductSKU         string   `json:"product_sku"`
	ProductName        string   `json:"product_name"`
	Quantity           int      `json:"quantity"`
	QuantityReceived   int      `json:"quantity_received"`
	QuantityRejected   int      `json:"quantity_rejected"`
	ReturnReasons      []string `json:"return_reasons"`
	ConditionOnArrival []string `json:"condition_on_arrival"`
}

type StatsResponse struct {
	TotalReturns     int64   `json:"total_returns"`
	PendingReturns   int64   `json:"pending_returns"`
	ProcessedReturns int64   `json:"processed_returns"`
	TotalClients     int64   `json:"total_clients"`
	TotalWarehouses  int64   `json:"total_warehouses"`
	ReturnsToday     int64   `json:"returns_today"`
	ReturnsThisWeek  int64   `json:"returns_this_week"`
	ReturnsThisMonth int64   `json:"returns_this_month"`
	LastSync         *string `json:"last_sync"`
}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type TopReturnedProduct struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	TotalQuantity int    `json:"total_quantity"`
	ReturnCount   int    `json:"return_count"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func mapReturnToSummary(ret models.Return) ReturnSummary {
	summary := ReturnSummary{
		ID:             ret.ID,
		APIID:          ret.APIID,
		PaidBy:         ret.PaidBy,
		Status:         ret.Status,
		CreatedAt:      formatTime(ret.CreatedAt),
		UpdatedAt:      formatTime(ret.UpdatedAt),
		Processed:      ret.Processed,
		TrackingNumber: ret.TrackingNumber,
		TrackingURL:    ret.TrackingURL,
		Carrier:        ret.Carrier,
		Service:        ret.Service,
		LastSyncedAt:   ret.LastSyncedAt.UTC().Format(time.RFC3339),
	}
	if ret.LabelCost.Valid {
		cost := ret.LabelCost.Decimal.StringFixed(2)
		summary.LabelCost = &cost
	}
	if ret.Client != nil {
		summary.ClientName = ret.Client.Name
	}
	if ret.Warehouse != nil {
		summary.WarehouseName = ret.Warehouse.Name
	}
	if ret.Order != nil {
		summary.OrderNumber = ret.Order.OrderNumber
		summary.CustomerName = ret.Order.CustomerName
	}
	return summary
}

func mapReturnToDetail(ret models.Return) ReturnDetailResponse {
	detail := ReturnDetailResponse{
		ReturnSummary: mapReturnToSummary(ret),
		ProcessedAt:   formatTime(ret.ProcessedAt),
		WarehouseNote: ret.WarehouseNote,
		CustomerNote:  ret.CustomerNote,
		LabelPDFURL:   ret.LabelPDFURL,
		RMASlipURL:    ret.RMASlipURL,
		LabelVoided:   ret.LabelVoided,
		Items:         make([]ReturnItemView, 0, len(ret.Items)),
	}
	for _, item := range ret.Items {
		view := ReturnItemView{
			ID:                 item.ID,
			Quantity:           item.Quantity,
			QuantityReceived:   item.QuantityReceived,
			QuantityRejected:   item.QuantityRejected,
			ReturnReasons:      []string(item.ReturnReasons),
			ConditionOnArrival: []string(item.ConditionOnArrival),
		}
		if view.ReturnReasons == nil {
			view.ReturnReasons = []string{}
		}
		if view.ConditionOnArrival == nil {
			view.ConditionOnArrival = []string{}
		}
		if item.Product != nil {
			view.ProductSKU = item.Product.SKU
			view.ProductName = item.Product.Name
		}
		detail.Items = append(detail.Items, view)
	}
	return detail
}
