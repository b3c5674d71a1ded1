package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pinjaman/hybrid/internal/config"
	"github.com/pinjaman/hybrid/internal/infra/cache"
	"github.com/pinjaman/hybrid/internal/infra/database"
	"github.com/pinjaman/hybrid/internal/infra/gateway"
	"github.com/pinjaman/hybrid/internal/infra/repository"
	"github.com/pinjaman/hybrid/internal/present/rest"
	"github.com/pinjaman/hybrid/internal/present/rest/middleware"
	"github.com/pinjaman/hybrid/internal/service"
	"github.com/pinjaman/hybrid/internal/usecase"
)

const serviceName = "pinjaman"

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func main() {
	configPath := flag.String("config", "/etc/pinjaman/config.yaml", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	conf, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	chain := conf.Chain.Domain()
	risk := conf.Risk.Domain()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			panic(err)
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}
	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	if err != nil {
		panic(err)
	}
	defer rdb.Close()

	mc, err := database.NewMemcached(conf.Server.MemcachedAddr)
	if err != nil {
		panic(err)
	}

	eth, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		panic(err)
	}
	defer eth.Close()

	// the server never holds a borrower key; ledger writes are rejected
	ledger, err := gateway.NewLedgerGateway(eth, chain, nil)
	if err != nil {
		panic(err)
	}

	draftRepo := repository.NewDraftRepository(db)
	repayRepo := repository.NewRepayReferenceRepository(db)
	signalService := service.NewSignalService(rdb)
	displayCache := cache.NewMemcached(mc)

	draftUsecase := usecase.NewDraftUsecase(draftRepo, signalService, chain)
	positionUsecase := usecase.NewPositionUsecase(ledger, repayRepo, signalService, displayCache, chain, risk)
	repayUsecase := usecase.NewRepayReferenceUsecase(repayRepo)
	reconcileUsecase := usecase.NewReconcileUsecase(draftRepo, ledger, signalService, conf.Server.OrphanWindowDuration)

	authService := service.NewAuthService(conf.Chain.ViewerAudience())
	authMiddleware := middleware.NewAuthMiddleware(authService)

	handler := rest.NewHandler(draftUsecase, positionUsecase, repayUsecase, signalService)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(serviceName))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit("64K"))
	e.Use(echomiddleware.TimeoutWithConfig(echomiddleware.TimeoutConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/realtime" },
		Timeout: conf.Server.SubmitTimeoutDuration,
	}))
	e.Use(authMiddleware.IdentifyViewer)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	handler.RegisterRoutes(e)

	go reconcileLoop(ctx, reconcileUsecase, conf.Server.ReconcileIntervalDuration)

	go func() {
		slog.Info("server starting", slog.String("listen", conf.Server.Listen), slog.String("module", "main"))
		if err := e.Start(conf.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()), slog.String("module", "main"))
	}
}

func reconcileLoop(ctx context.Context, uc *usecase.ReconcileUsecase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.Run(ctx); err != nil {
				slog.ErrorContext(
					ctx, "reconcile failed",
					slog.String("error", err.Error()),
					slog.String("module", "reconcile"),
				)
			}
		}
	}
}
