package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmland-checkout/internal/cache"
	"farmland-checkout/internal/client"
	"farmland-checkout/internal/config"
	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/events"
	"farmland-checkout/internal/logger"
	"farmland-checkout/internal/middleware"
	"farmland-checkout/internal/repository"
	"farmland-checkout/internal/server"
	"farmland-checkout/internal/service"
)

func main() {
	cfg, err := config.Load[config.Config]()
	if err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	ctx := context.Background()

	db, err := client.InitDBClient(cfg.DatabaseURL)
	if err != nil {
		log.Error("init database", "error", err)
		os.Exit(1)
	}

	statusCache := cache.NewNoopStatusCache()
	rdb, err := client.InitRedisClient(ctx, &cfg.Redis)
	if err != nil {
		log.Error("init redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		statusCache = cache.NewRedisStatusCache(rdb, cfg.Redis.StatusTTL)
	}

	publisher := events.NewNoopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	}
	defer publisher.Close()

	anetClient := client.NewAuthorizeNetClient(&cfg.Gateway)
	var (
		gateway         client.GatewayClient = anetClient
		braintreeClient client.BraintreeClient
	)
	if cfg.Gateway.Provider == client.ProviderBraintree {
		braintreeClient = client.NewBraintreeClient(&cfg.BrainTree, cfg.BaseURL)
		gateway = braintreeClient
	}

	userRepo := repository.NewUserRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		DB:               db,
		Gateway:          gateway,
		AuthorizeNet:     anetClient,
		Braintree:        braintreeClient,
		UserRepo:         userRepo,
		TransactionRepo:  transactionRepo,
		OrderRepo:        orderRepo,
		WebhookEventRepo: webhookEventRepo,
		StatusCache:      statusCache,
		Publisher:        publisher,
		Log:              log,
		Options: service.PaymentOptions{
			ReturnURL:          cfg.Gateway.ReturnURL,
			CancelURL:          cfg.Gateway.CancelURL,
			AllowedReturnHosts: cfg.Gateway.AllowedReturnHosts,
		},
	})

	srv := server.NewServer(server.Services{
		Payment: paymentService,
		Order:   service.NewOrderService(db, orderRepo, userRepo, publisher, cfg.Orders.CancelWindow, log),
		Rewards: service.NewRewardsService(db, userRepo, couponRepo, publisher, log),
		User:    service.NewUserService(userRepo),
	}, []byte(cfg.Auth.JWTSecret), log)

	if cfg.Environment.IsDevelopment() {
		demo := dto.Identity{UserID: "demo-user-001", Name: "Demo Shopper", Role: dto.RoleStaff}
		if token, err := middleware.IssueToken([]byte(cfg.Auth.JWTSecret), demo, cfg.Auth.TokenTTL, time.Now()); err == nil {
			log.Info("development token issued", "user_id", demo.UserID, "token", token)
		}
	}

	serverAddr := cfg.HTTP.Addr()
	log.Info("starting HTTP server", "addr", serverAddr, "provider", gateway.Provider())
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
}
