package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"freight-cloud/internal/audit"
	"freight-cloud/internal/auth"
	batchapp "freight-cloud/internal/batch/application"
	batchevents "freight-cloud/internal/batch/application/events"
	batchrepo "freight-cloud/internal/batch/infrastructure/postgres"
	batchhttp "freight-cloud/internal/batch/interfaces/http"
	"freight-cloud/internal/eventing"
	"freight-cloud/internal/eventing/eventbus"
	eventingrepo "freight-cloud/internal/eventing/infrastructure/postgres"
	ledgerapp "freight-cloud/internal/ledger/application"
	ledgerrepo "freight-cloud/internal/ledger/infrastructure/postgres"
	ledgerhttp "freight-cloud/internal/ledger/interfaces/http"
	masterdatarepo "freight-cloud/internal/masterdata/infrastructure/postgres"
	masterdatahttp "freight-cloud/internal/masterdata/interfaces/http"
	"freight-cloud/internal/observability/metrics"
	reconapp "freight-cloud/internal/reconciliation/application"
	reconrepo "freight-cloud/internal/reconciliation/infrastructure/postgres"
	reconhttp "freight-cloud/internal/reconciliation/interfaces/http"
	reconmetrics "freight-cloud/internal/reconciliation/metrics"
	reconnotify "freight-cloud/internal/reconciliation/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	agencyChecker := auth.NewAgencyChecker(db)
	auditRepo := audit.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(batchevents.BatchCreated{})
	registry.Register(batchevents.BatchTransitioned{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.CompanyID, baseBus)

	batchRepo := batchrepo.NewBatchRepository(db)
	batchService, err := batchapp.NewService(batchRepo, publisher, batchapp.SystemClock{}, batchapp.WithDepartureWindow(cfg.DepartureWindow))
	if err != nil {
		logger.Fatalf("batch service error: %v", err)
	}
	batchHandler, err := batchhttp.NewHandler(batchService, agencyChecker, auditRepo)
	if err != nil {
		logger.Fatalf("batch handler error: %v", err)
	}

	ledgerRepo := ledgerrepo.NewLedgerRepository(db)
	ledgerService, err := ledgerapp.NewService(ledgerRepo, ledgerapp.SystemClock{})
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	ledgerHandler, err := ledgerhttp.NewHandler(ledgerService, agencyChecker, auditRepo)
	if err != nil {
		logger.Fatalf("ledger handler error: %v", err)
	}

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[batchevents.BatchTransitioned](), "batch.log", func(ctx context.Context, event any) error {
		evt, ok := event.(batchevents.BatchTransitioned)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		metrics.IncBatchTransition(string(evt.To))
		metrics.ObserveConsumerLag("batch.log", time.Since(evt.OccurredAt))
		logger.Printf("batch transitioned: batch=%s agency=%s %s->%s", evt.BatchID, evt.AgencyID, evt.From, evt.To)
		return nil
	}, processedStore)

	agencyRepo := masterdatarepo.NewAgencyRepository(db)
	vehicleRepo := masterdatarepo.NewVehicleRepository(db)
	masterdataHandler, err := masterdatahttp.NewHandler(agencyRepo, vehicleRepo, cfg.CompanyID)
	if err != nil {
		logger.Fatalf("masterdata handler error: %v", err)
	}

	reconCfg, err := reconapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reconciliation config error: %v", err)
	}
	reconRepo := reconrepo.NewRepository(db)
	engine := reconapp.NewEngine(batchRepo, ledgerRepo, reconapp.SystemClock{})
	reconMetrics := reconmetrics.New()
	var reconNotifier reconnotify.Notifier
	if reconCfg.WebhookURL != "" {
		reconNotifier = reconnotify.NewWebhookNotifier(reconCfg.WebhookURL)
	}
	reconRunner := reconapp.NewRunner(engine, reconRepo, reconCfg, reconNotifier, reconMetrics, logger)
	reconHandler, err := reconhttp.NewHandler(reconRunner, reconRepo, cfg.CompanyID, agencyChecker)
	if err != nil {
		logger.Fatalf("reconciliation handler error: %v", err)
	}
	reconScheduler := reconapp.NewScheduler(reconRunner, cfg.CompanyID, reconCfg.Schedule.Agencies, reconCfg.Schedule.DailyAt, logger)
	go reconScheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/batches", batchHandler)
	mux.Handle("/api/v1/batches/", batchHandler)
	mux.Handle("/api/v1/revenue/events", ledgerHandler)
	mux.Handle("/api/v1/revenue/events/", ledgerHandler)
	mux.Handle("/api/v1/reconciliation/run", reconHandler)
	mux.Handle("/api/v1/reconciliation/reports", reconHandler)
	mux.Handle("/api/v1/reconciliation/reports/", reconHandler)
	mux.Handle("/api/v1/agencies", masterdataHandler)
	mux.Handle("/api/v1/agencies/", masterdataHandler)
	mux.Handle("/api/v1/vehicles", masterdataHandler)
	mux.Handle("/api/v1/vehicles/", masterdataHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	CompanyID       string
	DepartureWindow time.Duration
	JWTSecret       string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		CompanyID:       getenvDefault("COMPANY_ID", "company-demo"),
		DepartureWindow: getenvDuration("BATCH_DEPARTURE_WINDOW", 6*time.Hour),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(routeLabel(r.URL.Path), statusClass(resp.status), elapsed)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
	})
}

func routeLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	if trimmed == path {
		return path
	}
	if idx := strings.Index(trimmed, "/"); idx > 0 {
		trimmed = trimmed[:idx]
	}
	return "/api/v1/" + trimmed
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
