// Package report renders customer statements as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"fieldops/internal/models"
)

const (
	SheetSummary  = "Summary"
	SheetOrders   = "Orders"
	SheetPayments = "Payments"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	orderHeaders = []string{"Order", "Date", "Product", "Unit", "Ordered", "Delivered", "Delivery", "Unit price", "Total", "Payment", "Status"}
	billHeaders  = []string{"Transaction", "Collected", "Amount", "Method", "Cheque", "Collected by", "Order", "Bill ref", "Status"}
)

// WriteStatement writes one workbook listing every order and payment of c.
func WriteStatement(w io.Writer, c *models.Customer, orders []*models.Order, txs []*models.BillTransaction) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	ordered, paid := decimal.Zero, decimal.Zero
	orderRows := make([][]any, 0, len(orders))
	for _, o := range orders {
		if o.Status != models.OrderCancelled {
			ordered = ordered.Add(o.TotalAmount)
		}
		orderRows = append(orderRows, []any{
			o.ID, o.OrderDate.Format(time.DateOnly), o.ProductID, o.Unit,
			o.OrderedQuantity.String(), o.DeliveredQuantity.String(), string(o.DeliveryState()),
			o.UnitPrice.String(), o.TotalAmount.String(), string(o.PaymentMethod), string(o.Status),
		})
	}
	billRows := make([][]any, 0, len(txs))
	for _, b := range txs {
		paid = paid.Add(b.Amount)
		cheque := ""
		if b.Cheque != nil {
			cheque = fmt.Sprintf("%s / %s / %s", b.Cheque.Number, b.Cheque.Bank, b.Cheque.Date)
		}
		billRows = append(billRows, []any{
			b.ID, b.CollectedAt.Format(time.DateOnly), b.Amount.String(), string(b.Method), cheque,
			b.RecipientID, b.OrderID, b.BillRef, string(b.Status),
		})
	}

	summary := [][]any{
		{"Customer", c.Name},
		{"Customer id", c.ID},
		{"Phone", c.Phone},
		{"Credit limit", c.CreditLimit.String()},
		{"Available credit", c.AvailableCredit.String()},
		{"Ordered total", ordered.String()},
		{"Collected total", paid.String()},
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRows(f, SheetSummary, 1, summary); err != nil {
		return err
	}
	if err := writeTable(f, SheetOrders, header, orderHeaders, orderRows); err != nil {
		return err
	}
	if err := writeTable(f, SheetPayments, header, billHeaders, billRows); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, style int, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := writeRows(f, sheet, 1, [][]any{head}); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return writeRows(f, sheet, 2, rows)
}

func writeRows(f *excelize.File, sheet string, first int, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, first+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, first+i, err)
		}
	}
	return nil
}
