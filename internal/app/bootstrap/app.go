package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/careconnect-platform/internal/api/router"
	"github.com/wolfman30/careconnect-platform/internal/appointments"
	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/dashboard"
	"github.com/wolfman30/careconnect-platform/internal/directory"
	"github.com/wolfman30/careconnect-platform/internal/documents"
	httpmiddleware "github.com/wolfman30/careconnect-platform/internal/http/middleware"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// App is the assembled API process: the HTTP handler plus the background
// loops that keep it consistent.
type App struct {
	Handler  http.Handler
	Registry *prometheus.Registry

	logger     *logging.Logger
	pool       *pgxpool.Pool
	sqlDB      *sql.DB
	redis      *redis.Client
	relay      *notifications.Relay
	completer  *appointments.Completer
	limiter    *httpmiddleware.RateLimiter
	dispatcher *notifications.Dispatcher
}

// Build wires every component from cfg. Without DATABASE_URL the stores
// are in-memory; without REDIS_ADDR notifications are delivered only to
// sockets held by this process.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app := &App{logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(app.Registry)
	notificationMetrics := metrics.NewNotificationMetrics(app.Registry)
	loc := cfg.Location()

	pool, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.pool = pool

	var (
		scheduleStore     schedule.Store
		ledger            appointments.Ledger
		notificationStore notifications.Store
		directoryStore    directory.Store
		documentStore     documents.Store
	)
	if pool != nil {
		app.sqlDB = stdlib.OpenDBFromPool(pool)
		scheduleStore = schedule.NewPostgresStore(pool)
		ledger = appointments.NewPostgresLedger(pool, loc)
		notificationStore = notifications.NewPostgresStore(pool)
		directoryStore = directory.NewPostgresStore(pool)
		documentStore = documents.NewPostgresStore(pool)
		logger.Info("using postgres stores")
	} else {
		scheduleStore = schedule.NewInMemoryStore()
		ledger = appointments.NewInMemoryLedger()
		notificationStore = notifications.NewInMemoryStore()
		directoryStore = directory.NewInMemoryStore()
		documentStore = documents.NewInMemoryStore()
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	hub := notifications.NewHub(notificationMetrics)
	var publisher notifications.Publisher = hub
	if app.redis = BuildRedisClient(ctx, cfg, logger, true); app.redis != nil {
		publisher = notifications.NewRedisPublisher(app.redis)
		app.relay = notifications.NewRelay(app.redis, hub, logger)
	}

	var awsCfg *aws.Config
	if cfg.EmailProvider == "ses" || strings.TrimSpace(cfg.DocumentsBucket) != "" {
		loaded, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		awsCfg = &loaded
	}

	dispatcher := notifications.NewDispatcher(notificationStore, publisher, logger.Component("notifications"), notificationMetrics)
	app.dispatcher = dispatcher
	uploader := BuildUploader(cfg, awsCfg, logger)
	dirService := directory.NewService(directoryStore, dispatcher, uploader, logger.Component("directory"))
	dispatcher.WithEmail(BuildEmailSender(cfg, awsCfg, logger), dirService)
	documentService := documents.NewService(documentStore, uploader, logger.Component("documents"))

	scheduleService := schedule.NewService(scheduleStore, loc, logger.Component("schedule"))
	resolver := appointments.NewResolver(scheduleService, ledger, loc, nil, bookingMetrics)
	coordinator := appointments.NewCoordinator(ledger, resolver, dirService.Parties(), dispatcher, logger.Component("appointments"), bookingMetrics)
	app.completer = appointments.NewCompleter(ledger, logger.Component("completer"), bookingMetrics).
		WithInterval(cfg.CompletionSweepInterval)

	app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	routerCfg := &router.Config{
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        app.limiter,
		Schedule:           schedule.NewHandler(scheduleService, dirService, logger),
		Appointments:       appointments.NewHandler(coordinator, resolver, dirService, logger),
		Notifications:      notifications.NewHandler(dispatcher, hub, cfg.CORSAllowedOrigins, logger),
		Directory:          directory.NewHandler(dirService, logger),
		Documents:          documents.NewHandler(documentService, dirService, logger),
	}
	if app.sqlDB != nil {
		routerCfg.Dashboard = dashboard.NewHandler(app.sqlDB, logger)
	}
	if cfg.MetricsEnabled {
		routerCfg.MetricsHandler = promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; authenticated routes will reject every request")
	}
	app.Handler = router.New(routerCfg)
	return app, nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.relay != nil {
		a.relay.Start(ctx)
	}
	go a.completer.Start(ctx)
	a.limiter.Start(ctx)
}

// Drain waits for background notification emails to finish.
func (a *App) Drain(ctx context.Context) error {
	return a.dispatcher.Flush(ctx)
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
