package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/lukmanhidayah/siasn-sync/config"
	"github.com/lukmanhidayah/siasn-sync/internal/handlers"
	"github.com/lukmanhidayah/siasn-sync/internal/repositories/runlog"
	"github.com/lukmanhidayah/siasn-sync/pkg/auth"
	"github.com/lukmanhidayah/siasn-sync/pkg/database"
	"github.com/lukmanhidayah/siasn-sync/pkg/drive"
	"github.com/lukmanhidayah/siasn-sync/pkg/events"
	"github.com/lukmanhidayah/siasn-sync/pkg/fetcher"
	"github.com/lukmanhidayah/siasn-sync/pkg/health"
	"github.com/lukmanhidayah/siasn-sync/pkg/httpclient"
	"github.com/lukmanhidayah/siasn-sync/pkg/kafka"
	"github.com/lukmanhidayah/siasn-sync/pkg/middleware"
	"github.com/lukmanhidayah/siasn-sync/pkg/runner"
	"github.com/lukmanhidayah/siasn-sync/pkg/session"
	"github.com/lukmanhidayah/siasn-sync/pkg/siasn"
	"github.com/lukmanhidayah/siasn-sync/pkg/totp"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing/exporters"
)

const version = "1.0.0"

func main() {
	dotenvPath := os.Getenv("DOTENV_PATH")
	if dotenvPath == "" {
		dotenvPath = "config/credentials.env"
	}

	cfg, err := config.Load(dotenvPath)
	if err != nil {
		panic(err)
	}

	logger := buildLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := setupTracing(ctx, cfg, logger)
	defer shutdownTracing()

	// session and auth
	sessionStore := session.NewStore(cfg.DataDir, logger)
	totpClient := totp.NewClient(cfg.TOTPURL, cfg.TOTPTimeout, logger)
	authenticator := auth.New(auth.Config{
		SSOURL:           cfg.SSOURL,
		RedirectURL:      cfg.SSORedirectURL,
		Username:         cfg.SSOUsername,
		Password:         cfg.SSOPassword,
		UsernameSelector: cfg.SSOUsernameSelector,
		PasswordSelector: cfg.SSOPasswordSelector,
		LoginSelector:    cfg.SSOLoginSelector,
		WaitTimeout:      cfg.SSOWaitTimeout,
		Headless:         cfg.BrowserHeadless,
		ScreenshotDir:    cfg.DataDir + "/logs",
	}, sessionStore, totpClient, logger)

	// API client and bulk fetcher
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	apiClient := siasn.NewClient(siasn.Config{
		BaseURL:       cfg.APIBaseURL,
		DocumentURL:   cfg.PertekDocumentURL,
		SKDocumentURL: cfg.SKDocumentURL,
	}, httpclient.NewClient(httpCfg, logger), sessionStore, logger)

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.PageSize = cfg.FetchPageSize
	fetchCfg.PageDelay = cfg.FetchPageDelay
	fetchCfg.TglUsulan = cfg.FetchTglUsulan
	fetchCfg.Periode = cfg.FetchPeriode
	bulkFetcher := fetcher.New(fetchCfg, apiClient, logger)

	// optional integrations
	var archive drive.Archive
	if cfg.DriveEnabled {
		svc, err := drive.NewService(ctx, cfg.DriveCredentialsPath, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize drive archive, continuing without uploads")
		} else {
			archive = svc
		}
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      strings.Split(cfg.KafkaBrokers, ","),
			Topic:        cfg.KafkaRunTopic,
			Compression:  cfg.KafkaCompression,
			RequiredAcks: cfg.KafkaRequiredAcks,
		}, logger)
		defer producer.Close()
	}
	emitter := events.NewEmitter(producer, logger)

	var db *sqlx.DB
	var runRecorder runner.RunRecorder
	var runsHandler *handlers.RunsHandler
	if cfg.DatabaseEnabled() {
		db, err = database.Connect(ctx, database.Config{
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			User:            cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to connect to database, continuing without run history")
		} else {
			defer db.Close()
			if err := database.Migrate(db, cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, logger); err != nil {
				logger.WithError(err).Error("failed to run migrations")
				os.Exit(1)
			}
			repo := runlog.NewRepository(db, logger)
			runRecorder = repo
			runsHandler = handlers.NewRunsHandler(repo, logger)
		}
	}

	// runner and scheduler
	run := runner.New(runner.Config{
		DataDir:             cfg.DataDir,
		SelectionFilePath:   cfg.SelectionFilePath,
		LookupDelay:         cfg.LookupDelay,
		DownloadWorkers:     cfg.DownloadWorkers,
		DriveSheetFolderID:  cfg.DriveSheetFolderID,
		DrivePertekFolderID: cfg.DrivePertekFolderID,
		DriveSKFolderID:     cfg.DriveSKFolderID,
	}, authenticator, sessionStore, apiClient, bulkFetcher, archive, emitter, runRecorder, logger)

	scheduler := runner.NewScheduler(run, cfg.Interval(), logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start scheduler")
		os.Exit(1)
	}

	// operational HTTP surface
	checker := health.NewChecker(cfg.DataDir, totpClient, dbPinger(db), version)
	e := buildServer(cfg, logger, checker, runsHandler, handlers.NewStatusHandler(run))
	checker.SetReady(true)

	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("scheduler did not stop cleanly")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http server did not stop cleanly")
	}
}

func buildLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func buildServer(cfg *config.Config, logger ectologger.Logger, checker *health.Checker, runsHandler *handlers.RunsHandler, statusHandler *handlers.StatusHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)
	statusHandler.RegisterRoutes(e)
	if runsHandler != nil {
		runsHandler.RegisterRoutes(e)
	}
	return e
}

func setupTracing(ctx context.Context, cfg *config.Config, logger ectologger.Logger) func() {
	var exporter sdktrace.SpanExporter = &exporters.ConsoleExporter{}
	if cfg.OTLPEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("failed to create otlp exporter, falling back to console")
		} else {
			exporter = otlp
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown failed")
		}
	}
}

// dbPinger adapts an optional sqlx pool to the health checker contract.
func dbPinger(db *sqlx.DB) health.Pinger {
	if db == nil {
		return nil
	}
	return pinger{db}
}

type pinger struct {
	db *sqlx.DB
}

func (p pinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

