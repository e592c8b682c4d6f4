package interfaces

import (
	"bytes"
	"strings"
	"testing"
	"time"

	reconciliation "freight-cloud/internal/reconciliation/domain"
)

func sampleReport() *reconciliation.Report {
	return &reconciliation.Report{
		CompanyID: "company-1",
		AgencyID:  "agency-dep",
		From:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		CategoryTotals: map[string]int64{
			"TRANSPORT": 40000,
			"INSURANCE": 2500,
		},
		VehicleTotals: map[string]int64{"veh-1": 42500},
		Batches: []reconciliation.BatchSummary{
			{
				BatchID:           "btc-1",
				VehicleID:         "veh-1",
				Status:            "CLOSED",
				DepartureAt:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
				ShipmentCount:     2,
				BilledAmount:      40000,
				UnbilledShipments: []string{"shp-2"},
			},
		},
		Vehicles: []reconciliation.VehicleSummary{
			{VehicleID: "veh-1", LogisticsAmount: 40000, ClosedBatches: 1, BatchesInWindow: 1},
		},
		UnbilledTotal:   1,
		UnmatchedEvents: []string{"evt-ghost"},
		EventCount:      3,
		GeneratedAt:     time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC),
	}
}

func TestBuildReportCSV(t *testing.T) {
	data, err := BuildReportCSV(sampleReport())
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"agency_id,agency-dep",
		"unbilled_total,1",
		"TRANSPORT,40000",
		"INSURANCE,2500",
		"btc-1,veh-1,CLOSED",
		"shp-2",
		"veh-1,40000,1,1",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("csv missing %q", want)
		}
	}
}

func TestBuildReportPDF(t *testing.T) {
	data, err := BuildReportPDF(sampleReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}

func TestBuildReportXLSX(t *testing.T) {
	data, err := BuildReportXLSX(sampleReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("output is not a zip-based workbook")
	}
}
