package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	batchrepo "freight-cloud/internal/batch/infrastructure/postgres"
	ledgerrepo "freight-cloud/internal/ledger/infrastructure/postgres"
	reconapp "freight-cloud/internal/reconciliation/application"
	reconciliation "freight-cloud/internal/reconciliation/domain"
	reconinterfaces "freight-cloud/internal/reconciliation/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL          string
	companyID      string
	agencyID       string
	from           string
	to             string
	outDir         string
	includePartial bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	from, to, err := parseWindow(cfg.from, cfg.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	engine := reconapp.NewEngine(
		batchrepo.NewBatchRepository(db),
		ledgerrepo.NewLedgerRepository(db),
		reconapp.SystemClock{},
	)
	report, err := engine.BuildReport(ctx, reconapp.ReportRequest{
		CompanyID:      cfg.companyID,
		AgencyID:       cfg.agencyID,
		From:           from,
		To:             to,
		IncludePartial: cfg.includePartial,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "build report:", err)
		os.Exit(2)
	}

	if err := writeReportCSV(cfg.outDir, report); err != nil {
		fmt.Fprintln(os.Stderr, "write report csv:", err)
		os.Exit(2)
	}
	if err := writeReportJSON(cfg.outDir, report); err != nil {
		fmt.Fprintln(os.Stderr, "write report json:", err)
		os.Exit(2)
	}
	if err := writeEventsCSV(ctx, db, cfg.outDir, cfg.agencyID, from, to); err != nil {
		fmt.Fprintln(os.Stderr, "write events csv:", err)
		os.Exit(2)
	}

	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.companyID, "company", getenvDefault("COMPANY_ID", ""), "company id")
	flag.StringVar(&cfg.agencyID, "agency", "", "agency id")
	flag.StringVar(&cfg.from, "from", "", "window start (YYYY-MM-DD)")
	flag.StringVar(&cfg.to, "to", "", "window end, exclusive (YYYY-MM-DD, defaults to from+1 day)")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.BoolVar(&cfg.includePartial, "include-partial", false, "include ARRIVED batches in the report")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.companyID == "" {
		return cfg, errors.New("missing --company or COMPANY_ID")
	}
	if cfg.agencyID == "" {
		return cfg, errors.New("missing --agency")
	}
	if cfg.from == "" {
		return cfg, errors.New("missing --from (YYYY-MM-DD)")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseWindow(fromValue, toValue string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromValue)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
	}
	from = from.UTC()
	to := from.AddDate(0, 0, 1)
	if toValue != "" {
		to, err = time.Parse("2006-01-02", toValue)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = to.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func writeReportCSV(outDir string, report *reconciliation.Report) error {
	data, err := reconinterfaces.BuildReportCSV(report)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "report.csv"), data, 0o644)
}

func writeReportJSON(outDir string, report *reconciliation.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "report.json"), data, 0o644)
}

func writeEventsCSV(ctx context.Context, db *sql.DB, outDir, agencyID string, from, to time.Time) error {
	rows, err := db.QueryContext(ctx, `
SELECT
	event_id,
	source_type,
	source_id,
	agency_id,
	vehicle_id,
	amount,
	currency,
	category,
	occurred_at,
	recorded_at,
	reversal_of
FROM revenue_events
WHERE agency_id = $1
	AND occurred_at >= $2
	AND occurred_at < $3
ORDER BY occurred_at ASC, event_id ASC`, agencyID, from.UTC(), to.UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	file, err := os.Create(filepath.Join(outDir, "revenue_events.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"event_id",
		"source_type",
		"source_id",
		"agency_id",
		"vehicle_id",
		"amount",
		"currency",
		"category",
		"occurred_at",
		"recorded_at",
		"reversal_of",
	}); err != nil {
		return err
	}

	for rows.Next() {
		var (
			eventID    string
			sourceType string
			sourceID   string
			rowAgency  string
			vehicleID  sql.NullString
			amount     int64
			currency   string
			category   string
			occurredAt time.Time
			recordedAt time.Time
			reversalOf sql.NullString
		)
		if err := rows.Scan(
			&eventID,
			&sourceType,
			&sourceID,
			&rowAgency,
			&vehicleID,
			&amount,
			&currency,
			&category,
			&occurredAt,
			&recordedAt,
			&reversalOf,
		); err != nil {
			return err
		}
		if err := writer.Write([]string{
			eventID,
			sourceType,
			sourceID,
			rowAgency,
			vehicleID.String,
			strconv.FormatInt(amount, 10),
			currency,
			category,
			occurredAt.UTC().Format(timeLayout),
			recordedAt.UTC().Format(timeLayout),
			reversalOf.String,
		}); err != nil {
			return err
		}
	}
	return rows.Err()
}
