package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	alertrepo "coldchain-cloud/internal/alerts/infrastructure/postgres"
	alertinterfaces "coldchain-cloud/internal/alerts/interfaces"
	alerthttp "coldchain-cloud/internal/alerts/interfaces/http"
	alertnotify "coldchain-cloud/internal/alerts/notify"
	"coldchain-cloud/internal/audit"
	"coldchain-cloud/internal/auth"
	"coldchain-cloud/internal/eventing"
	eventingrepo "coldchain-cloud/internal/eventing/infrastructure/postgres"
	fleetapp "coldchain-cloud/internal/fleet/application"
	fleetrepo "coldchain-cloud/internal/fleet/infrastructure/postgres"
	fleethttp "coldchain-cloud/internal/fleet/interfaces/http"
	"coldchain-cloud/internal/observability/metrics"
	telemetryevents "coldchain-cloud/internal/telemetry/application/events"
	telemetryrepo "coldchain-cloud/internal/telemetry/infrastructure/postgres"
	telemetryhttp "coldchain-cloud/internal/telemetry/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	alertCfg, err := alertapp.LoadConfig()
	if err != nil {
		logger.Fatalf("alerts config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	companyRepo := fleetrepo.NewCompanyRepository(db)
	branchRepo := fleetrepo.NewBranchRepository(db)
	equipmentRepo := fleetrepo.NewEquipmentRepository(db)
	maintenanceRepo := fleetrepo.NewMaintenanceRepository(db)
	readingRepo := telemetryrepo.NewReadingRepository(db)

	companyChecker, err := auth.NewCompanyChecker(equipmentRepo)
	if err != nil {
		logger.Fatalf("company checker error: %v", err)
	}

	baseBus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(telemetryevents.ReadingReceived{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, "", baseBus)

	fleetService, err := fleetapp.NewService(companyRepo, branchRepo, equipmentRepo, maintenanceRepo, logger, fleetapp.WithAuditor(auditRepo))
	if err != nil {
		logger.Fatalf("fleet service error: %v", err)
	}
	fleetHandler, err := fleethttp.NewHandler(fleetService)
	if err != nil {
		logger.Fatalf("fleet handler error: %v", err)
	}

	ruleRepo := alertrepo.NewRuleRepository(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	stateRepo := alertrepo.NewStateRepository(db)

	resolver, err := alertapp.NewResolver(ruleRepo, alertCfg.RuleCacheTTL())
	if err != nil {
		logger.Fatalf("rule resolver error: %v", err)
	}

	alertBroker := alerthttp.NewSSEBroker()
	alertNotifiers := []alertapp.AlertNotifier{alertBroker}
	if alertCfg.Notify.WebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(alertCfg.Notify.WebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		tpl, err := alertnotify.NewTemplate(alertCfg.Notify.Template)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		notifier, err := alertnotify.NewNotifier(ruleRepo, equipmentRepo, alertRepo, channel, tpl,
			alertnotify.WithEscalation(time.Duration(alertCfg.Notify.EscalationSeconds)*time.Second),
			alertnotify.WithCooldown(time.Duration(alertCfg.Notify.CooldownSeconds)*time.Second),
			alertnotify.WithDedupeWindow(time.Duration(alertCfg.Notify.DedupeWindowSeconds)*time.Second),
			alertnotify.WithRequestTimeout(time.Duration(alertCfg.Notify.RequestTimeoutSeconds)*time.Second),
		)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		defer notifier.Close()
		alertNotifiers = append(alertNotifiers, notifier)
	}

	alertService, err := alertapp.NewService(resolver, alertRepo, stateRepo, equipmentRepo, logger,
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(alertNotifiers...)),
		alertapp.WithOfflineThreshold(alertCfg.OfflineThreshold()),
	)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	alertConsumer, err := alertinterfaces.NewReadingReceivedConsumer(alertService)
	if err != nil {
		logger.Fatalf("alert consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventing.EventTypeOf[telemetryevents.ReadingReceived](), "alerts.reading", func(ctx context.Context, event any) error {
		evt, ok := event.(telemetryevents.ReadingReceived)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		return alertConsumer.Consume(ctx, evt)
	}, processedStore)

	sweeper, err := alertapp.NewSweeper(alertService, alertCfg.SweepInterval(), logger)
	if err != nil {
		logger.Fatalf("sweeper error: %v", err)
	}
	go sweeper.Run(context.Background())

	ruleAdmin, err := alertapp.NewRuleAdmin(ruleRepo, resolver, auditRepo, logger)
	if err != nil {
		logger.Fatalf("rule admin error: %v", err)
	}
	rulesHandler, err := alerthttp.NewRulesHandler(ruleAdmin)
	if err != nil {
		logger.Fatalf("rules handler error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	exportHandler, err := alerthttp.NewExportHandler(alertService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	ingestHandler, err := telemetryhttp.NewIngestHandler(readingRepo, equipmentRepo, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	queryHandler, err := telemetryhttp.NewQueryHandler(readingRepo, companyChecker)
	if err != nil {
		logger.Fatalf("query handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/equipments/telemetry", ingestHandler)
	mux.Handle("/api/v1/companies", fleetHandler)
	mux.Handle("/api/v1/companies/", fleetHandler)
	mux.Handle("/api/v1/branches", fleetHandler)
	mux.Handle("/api/v1/branches/", fleetHandler)
	mux.Handle("/api/v1/equipments", fleetHandler)
	mux.Handle("/api/v1/equipments/", fleetHandler)
	mux.Handle("/api/v1/readings", queryHandler)
	mux.Handle("/api/v1/alert-rules", rulesHandler)
	mux.Handle("/api/v1/alert-rules/", rulesHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(alertBroker))
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/exports/alerts.csv", exportHandler)
	mux.Handle("/api/v1/exports/alerts.xlsx", exportHandler)
	mux.Handle("/api/v1/exports/alerts.pdf", exportHandler)
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
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
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

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
