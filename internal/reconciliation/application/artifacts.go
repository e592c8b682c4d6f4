package application

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	reconciliation "freight-cloud/internal/reconciliation/domain"
)

const timeLayout = time.RFC3339

func writeReportFiles(outDir string, report *reconciliation.Report) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if err := writeBatchesCSV(outDir, report); err != nil {
		return err
	}
	if err := writeVehiclesCSV(outDir, report); err != nil {
		return err
	}
	if err := writeCategoryTotalsCSV(outDir, report); err != nil {
		return err
	}
	return writeReportJSON(outDir, report)
}

func writeArchive(outDir string) (string, error) {
	archivePath := filepath.Join(outDir, "report.zip")
	file, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	zipWriter := zip.NewWriter(file)
	defer zipWriter.Close()

	entries := []string{
		"batches.csv",
		"vehicles.csv",
		"category_totals.csv",
		"report.json",
	}

	for _, name := range entries {
		path := filepath.Join(outDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fw, err := zipWriter.Create(name)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if _, err := fw.Write(data); err != nil {
			return "", err
		}
	}
	return archivePath, nil
}

func writeBatchesCSV(outDir string, report *reconciliation.Report) error {
	path := filepath.Join(outDir, "batches.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"batch_id",
		"vehicle_id",
		"status",
		"departure_at",
		"shipment_count",
		"billed_amount",
		"unbilled_shipments",
	}); err != nil {
		return err
	}

	for _, row := range report.Batches {
		if err := writer.Write([]string{
			row.BatchID,
			row.VehicleID,
			row.Status,
			formatTime(row.DepartureAt),
			strconv.Itoa(row.ShipmentCount),
			strconv.FormatInt(row.BilledAmount, 10),
			strings.Join(row.UnbilledShipments, ";"),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeVehiclesCSV(outDir string, report *reconciliation.Report) error {
	path := filepath.Join(outDir, "vehicles.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"vehicle_id",
		"logistics_amount",
		"closed_batches",
		"batches_in_window",
	}); err != nil {
		return err
	}

	for _, row := range report.Vehicles {
		if err := writer.Write([]string{
			row.VehicleID,
			strconv.FormatInt(row.LogisticsAmount, 10),
			strconv.Itoa(row.ClosedBatches),
			strconv.Itoa(row.BatchesInWindow),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeCategoryTotalsCSV(outDir string, report *reconciliation.Report) error {
	path := filepath.Join(outDir, "category_totals.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"category", "amount"}); err != nil {
		return err
	}

	categories := make([]string, 0, len(report.CategoryTotals))
	for category := range report.CategoryTotals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		if err := writer.Write([]string{
			category,
			strconv.FormatInt(report.CategoryTotals[category], 10),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeReportJSON(outDir string, report *reconciliation.Report) error {
	path := filepath.Join(outDir, "report.json")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
