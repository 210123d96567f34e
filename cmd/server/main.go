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

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shop/internal/config"
	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/httpserver"
	"github.com/Skotchmaster/shop/internal/images"
	"github.com/Skotchmaster/shop/internal/invoice"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/payment"
	"github.com/Skotchmaster/shop/internal/repo"
	"github.com/Skotchmaster/shop/internal/search"
	"github.com/Skotchmaster/shop/internal/service"
	"github.com/Skotchmaster/shop/internal/session"
	"github.com/Skotchmaster/shop/internal/views"
	"github.com/Skotchmaster/shop/migrations"
	"github.com/Skotchmaster/shop/pkg/db"
)

func main() {
	cfg := config.Load()
	cfg.Validate()

	logger := logging.New(cfg.LogLevel)
	ctx := logging.IntoContext(context.Background(), logger)

	if err := db.Migrate(cfg.DatabaseURL, migrations.FS); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db init failed", "error", err)
		os.Exit(1)
	}
	store := &repo.GormRepo{DB: gdb}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Error("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers)
		publisher = kafkaPub
	} else {
		logger.Info("KAFKA_BROKERS not set, domain events are dropped")
	}

	var searcher service.Searcher
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(search.Config{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		}, logger)
		if err != nil {
			logger.Warn("elasticsearch unavailable, searching the database", "error", err)
		} else {
			searcher = &search.Index{ES: esClient, Name: cfg.ESIndex}
		}
	}

	var imageStore images.Store
	imageDir := ""
	if cfg.MinioEndpoint != "" {
		ms, err := images.NewMinioStore(ctx, images.MinioConfig{
			Endpoint: cfg.MinioEndpoint,
			User:     cfg.MinioUser,
			Password: cfg.MinioPassword,
			Bucket:   cfg.MinioBucket,
			UseSSL:   cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Error("minio init failed", "error", err)
			os.Exit(1)
		}
		imageStore = ms
	} else {
		imageDir = cfg.ImageDir
		imageStore = &images.DiskStore{Dir: cfg.ImageDir, URLPrefix: "/images"}
	}

	var gateway payment.Gateway = payment.Offline{}
	if cfg.StripeKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeKey)
	} else {
		logger.Warn("STRIPE_KEY not set, charges are accepted offline")
	}

	renderer, err := views.NewRenderer()
	if err != nil {
		logger.Error("templates failed to parse", "error", err)
		os.Exit(1)
	}

	sessions := &session.Store{
		Redis:  rdb,
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	}
	catalog := &service.CatalogService{
		Repo:    store,
		Images:  imageStore,
		Search:  searcher,
		Events:  publisher,
		PerPage: cfg.ItemsPerPage,
	}

	e := httpserver.New(&httpserver.Deps{
		Logger:   logger,
		Repo:     store,
		Redis:    rdb,
		Sessions: sessions,
		Renderer: renderer,
		ShopHandler: &httpserver.ShopHTTP{
			Catalog: catalog,
			Svc: &service.ShopService{
				Repo:     store,
				Payments: gateway,
				Invoices: &invoice.PDF{Dir: cfg.InvoiceDir},
				Events:   publisher,
				Currency: "usd",
			},
			StripeKey: cfg.StripePublishableKey,
		},
		AdminHandler: &httpserver.AdminHTTP{Svc: catalog},
		AuthHandler: &httpserver.AuthHTTP{
			Svc: &service.AuthService{
				Repo:     store,
				Events:   publisher,
				ResetTTL: cfg.ResetTTL,
				BaseURL:  cfg.BaseURL,
			},
			Sessions: sessions,
		},
		ImageDir:     imageDir,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		logger.Warn("force exit")
		os.Exit(1)
	}()

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
