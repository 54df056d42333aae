package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nk-nexus/order-stock-api/internal/auth"
	"github.com/nk-nexus/order-stock-api/internal/config"
	"github.com/nk-nexus/order-stock-api/internal/httpx"
	kafkax "github.com/nk-nexus/order-stock-api/internal/kafka"
	"github.com/nk-nexus/order-stock-api/internal/orders"
	"github.com/nk-nexus/order-stock-api/internal/postgres"
	"github.com/nk-nexus/order-stock-api/internal/redisx"
	"github.com/nk-nexus/order-stock-api/internal/stocks"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (topic per message, lihat PublishTo)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	// Auth
	jwtSvc := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	authn := httpx.Authenticate(jwtSvc)

	// Repos & handlers
	orderRepo := &orders.Repo{DB: db}
	stockRepo := &stocks.Repo{DB: db}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:      orderRepo,
		Producer: prod,
		Redis:    rdb,
		Log:      logger,
		Service:  cfg.ServiceName,
	}
	oh.Register(router, authn)
	ph := &httpx.PaymentsHandler{
		Svc:      orderRepo,
		Producer: prod,
		Log:      logger,
		Service:  cfg.ServiceName,
	}
	ph.Register(router, authn)
	sh := &httpx.StocksHandler{Svc: stockRepo, Log: logger}
	sh.Register(router, authn, httpx.RequireStaff)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
