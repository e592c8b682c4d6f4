package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reconciliation "freight-cloud/internal/reconciliation/domain"
)

// BuildReportCSV renders a report as a single CSV document.
func BuildReportCSV(report *reconciliation.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	_ = writer.Write([]string{"agency_id", report.AgencyID})
	_ = writer.Write([]string{"window_from", report.From.Format(time.RFC3339)})
	_ = writer.Write([]string{"window_to", report.To.Format(time.RFC3339)})
	_ = writer.Write([]string{"unbilled_total", strconv.Itoa(report.UnbilledTotal)})
	_ = writer.Write([]string{"unmatched_events", strconv.Itoa(len(report.UnmatchedEvents))})
	_ = writer.Write(nil)

	_ = writer.Write([]string{"category", "amount"})
	for _, category := range sortedKeys(report.CategoryTotals) {
		_ = writer.Write([]string{category, strconv.FormatInt(report.CategoryTotals[category], 10)})
	}
	_ = writer.Write(nil)

	_ = writer.Write([]string{"batch_id", "vehicle_id", "status", "departure_at", "shipment_count", "billed_amount", "unbilled_shipments"})
	for _, row := range report.Batches {
		_ = writer.Write([]string{
			row.BatchID,
			row.VehicleID,
			row.Status,
			row.DepartureAt.Format(time.RFC3339),
			strconv.Itoa(row.ShipmentCount),
			strconv.FormatInt(row.BilledAmount, 10),
			strings.Join(row.UnbilledShipments, ";"),
		})
	}
	_ = writer.Write(nil)

	_ = writer.Write([]string{"vehicle_id", "logistics_amount", "closed_batches", "batches_in_window"})
	for _, row := range report.Vehicles {
		_ = writer.Write([]string{
			row.VehicleID,
			strconv.FormatInt(row.LogisticsAmount, 10),
			strconv.Itoa(row.ClosedBatches),
			strconv.Itoa(row.BatchesInWindow),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportPDF renders a minimal PDF for a report.
func BuildReportPDF(report *reconciliation.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Agency Reconciliation Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Agency: %s", report.AgencyID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s .. %s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Unbilled shipments: %d", report.UnbilledTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Unmatched events: %d", len(report.UnmatchedEvents)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, category := range sortedKeys(report.CategoryTotals) {
		pdf.CellFormat(70, 6, category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, strconv.FormatInt(report.CategoryTotals[category], 10), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Batch", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Vehicle", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Billed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Unbilled", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range report.Batches {
		pdf.CellFormat(45, 6, row.BatchID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, row.VehicleID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, row.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, strconv.FormatInt(row.BilledAmount, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, strconv.Itoa(len(row.UnbilledShipments)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a minimal XLSX for a report.
func BuildReportXLSX(report *reconciliation.Report) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	batchesSheet := "batches"
	vehiclesSheet := "vehicles"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(batchesSheet)
	f.NewSheet(vehiclesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Agency Reconciliation Report")
	_ = f.SetCellValue(summarySheet, "A3", "Agency")
	_ = f.SetCellValue(summarySheet, "B3", report.AgencyID)
	_ = f.SetCellValue(summarySheet, "A4", "Window From")
	_ = f.SetCellValue(summarySheet, "B4", report.From.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Window To")
	_ = f.SetCellValue(summarySheet, "B5", report.To.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A6", "Unbilled Shipments")
	_ = f.SetCellValue(summarySheet, "B6", report.UnbilledTotal)
	_ = f.SetCellValue(summarySheet, "A7", "Unmatched Events")
	_ = f.SetCellValue(summarySheet, "B7", len(report.UnmatchedEvents))
	row := 9
	for _, category := range sortedKeys(report.CategoryTotals) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), category)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), report.CategoryTotals[category])
		row++
	}

	_ = f.SetCellValue(batchesSheet, "A1", "Batch")
	_ = f.SetCellValue(batchesSheet, "B1", "Vehicle")
	_ = f.SetCellValue(batchesSheet, "C1", "Status")
	_ = f.SetCellValue(batchesSheet, "D1", "Departure")
	_ = f.SetCellValue(batchesSheet, "E1", "Shipments")
	_ = f.SetCellValue(batchesSheet, "F1", "Billed")
	_ = f.SetCellValue(batchesSheet, "G1", "Unbilled Shipments")
	for i, item := range report.Batches {
		row := i + 2
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("A%d", row), item.BatchID)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("B%d", row), item.VehicleID)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("C%d", row), item.Status)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("D%d", row), item.DepartureAt.Format(time.RFC3339))
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("E%d", row), item.ShipmentCount)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("F%d", row), item.BilledAmount)
		_ = f.SetCellValue(batchesSheet, fmt.Sprintf("G%d", row), strings.Join(item.UnbilledShipments, ";"))
	}

	_ = f.SetCellValue(vehiclesSheet, "A1", "Vehicle")
	_ = f.SetCellValue(vehiclesSheet, "B1", "Logistics Amount")
	_ = f.SetCellValue(vehiclesSheet, "C1", "Closed Batches")
	_ = f.SetCellValue(vehiclesSheet, "D1", "Batches In Window")
	for i, item := range report.Vehicles {
		row := i + 2
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("A%d", row), item.VehicleID)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("B%d", row), item.LogisticsAmount)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("C%d", row), item.ClosedBatches)
		_ = f.SetCellValue(vehiclesSheet, fmt.Sprintf("D%d", row), item.BatchesInWindow)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedKeys(totals map[string]int64) []string {
	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
