package dashboard

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/Uptime-ops/uptime-returns-sub000/config"
	"github.com/Uptime-ops/uptime-returns-sub000/models"
)

var exportHeader = []string{
	"Client", "Customer Name", "Order Date", "Return Date",
	"Order Number", "Item Name", "Return Qty", "Reason for Return", "Condition",
}

type exportRow struct {
	Client       string
	CustomerName string
	OrderDate    string
	ReturnDate   string
	OrderNumber  string
	ItemName     string
	ReturnQty    int
	Reasons      string
	Condition    string
}

// ExportReturnsHandler streams the filtered returns as a flat file,
// one row per return item. The format query parameter selects csv
// (default) or excel.
func ExportReturnsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchReturnsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var returns []models.Return
		if err := applyReturnFilters(db, req).
			Preload("Client").
			Preload("Order").
			Preload("Items").
			Preload("Items.Product").
			Order("returns.created_at DESC, returns.id DESC").
			Find(&returns).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		rows := flattenForExport(returns)
		filename := "returns_export_" + time.Now().UTC().Format("20060102_150405")

		switch strings.ToLower(c.Query("format")) {
		case "", "csv":
			writeCSV(c, filename, rows)
		case "excel", "xlsx":
			writeExcel(c, filename, rows)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown export format"})
		}
	}
}

func flattenForExport(returns []models.Return) []exportRow {
	rows := make([]exportRow, 0, len(returns))
	for _, ret := range returns {
		base := exportRow{}
		if ret.Client != nil {
			base.Client = ret.Client.Name
		}
		if ret.Order != nil {
			base.CustomerName = ret.Order.CustomerName
			base.OrderNumber = ret.Order.OrderNumber
			base.OrderDate = ret.Order.CreatedAt.UTC().Format("2006-01-02")
		}
		if ret.CreatedAt != nil {
			base.ReturnDate = ret.CreatedAt.UTC().Format("2006-01-02")
		}

		if len(ret.Items) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, item := range ret.Items {
			row := base
			row.ItemName = "Unknown Product"
			if item.Product != nil && item.Product.Name != "" {
				row.ItemName = item.Product.Name
			}
			row.ReturnQty = item.Quantity
			row.Reasons = strings.Join(item.ReturnReasons, "; ")
			row.Condition = strings.Join(item.ConditionOnArrival, "; ")
			rows = append(rows, row)
		}
	}
	return rows
}

func writeCSV(c *gin.Context, filename string, rows []exportRow) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, row := range rows {
		_ = w.Write([]string{
			row.Client, row.CustomerName, row.OrderDate, row.ReturnDate,
			row.OrderNumber, row.ItemName, fmt.Sprintf("%d", row.ReturnQty),
			row.Reasons, row.Condition,
		})
	}
	w.Flush()
}

func writeExcel(c *gin.Context, filename string, rows []exportRow) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	_ = f.SetSheetRow(sheet, "A1", &header)

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		_ = f.SetSheetRow(sheet, cell, &[]interface{}{
			row.Client, row.CustomerName, row.OrderDate, row.ReturnDate,
			row.OrderNumber, row.ItemName, row.ReturnQty,
			row.Reasons, row.Condition,
		})
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", filename))
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "dashboard", "writeExcel", "write", nil, err)
	}
}
