package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/veloura/storefront/internal/config"
	"github.com/veloura/storefront/internal/es"
	"github.com/veloura/storefront/internal/handlers"
	"github.com/veloura/storefront/internal/handlers/cart"
	"github.com/veloura/storefront/internal/handlers/order"
	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/mykafka"
	"github.com/veloura/storefront/internal/otp"
	"github.com/veloura/storefront/internal/payment"
	"github.com/veloura/storefront/internal/service/token"
	"github.com/veloura/storefront/internal/shipping"
	httpserver "github.com/veloura/storefront/internal/transport/http"
	"github.com/veloura/storefront/internal/worker"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	brokers := []string{configuration.KAFKA_ADDRESS}
	topics := []string{"user_events", "cart_events", "product_events", "order_events"}
	prod, err := mykafka.NewProducer(brokers, topics)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	rdb := config.NewRedis(configuration)
	otpStore := otp.NewRedisStore(rdb)
	phoneOTP := otp.NewService(otpStore, otp.NewSMSSender(configuration.SMS_URL, configuration.SMS_TOKEN))
	emailOTP := otp.NewService(otpStore, otp.NewEmailSender(configuration.EMAIL_URL, configuration.EMAIL_TOKEN))

	gateway := payment.NewClient(configuration.PAYMENT_URL, configuration.PAYMENT_KEY_ID, configuration.PAYMENT_KEY_SECRET)
	shipper := shipping.NewClient(configuration.SHIPPING_URL, configuration.SHIPPING_TOKEN, configuration.SHIPPING_ORIGIN_PIN)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB:             db,
		Logger:         logger,
		AuthHandler:    &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: prod, ES: esClient, Index: "product"},
		BannerHandler:  &handlers.BannerHandler{DB: db},
		ReviewHandler:  &handlers.ReviewHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		OTPHandler:     &handlers.OTPHandler{Phone: phoneOTP, Email: emailOTP},
		ShippingHandler: &handlers.ShippingHandler{Estimator: shipper},
		CartHandler:    &cart.CartHandler{DB: db, Producer: prod},
		OrderHandler: &order.OrderHandler{
			DB:            db,
			Producer:      prod,
			Gateway:       gateway,
			Estimator:     shipper,
			Shipper:       shipper,
			PaymentSecret: []byte(configuration.PAYMENT_KEY_SECRET),
			Currency:      "INR",
		},
		ServiceHandler: &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
	}
	httpserver.Register(e, &deps)

	retention := worker.NewRetentionWorker(db, logger)
	retention.Start(context.Background())

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	retention.Stop()

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	} else {
		logger.Error("db() error", "error", err)
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
