package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"storefront-service/handlers"
	"storefront-service/internal/auth"
	"storefront-service/internal/catalog"
	"storefront-service/internal/stores/github"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/stores/redis"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := startApp(); err != nil {
		slog.Error("service stopped", slog.String("Error", err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	// .env is a local development convenience; deployed environments set
	// real variables.
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file loaded", slog.String("Error", err.Error()))
	}

	// The signing secret and store token have no safe defaults. Refuse to
	// start without them rather than accept unverifiable webhooks.
	for _, name := range []string{"STRIPE_WEBHOOK_SECRET", "GITHUB_TOKEN", "GITHUB_OWNER", "GITHUB_REPO", "GITHUB_FILE_PATH"} {
		if os.Getenv(name) == "" {
			return fmt.Errorf("required environment variable %s is not set", name)
		}
	}

	store, err := github.NewConf(
		os.Getenv("GITHUB_TOKEN"),
		os.Getenv("GITHUB_OWNER"),
		os.Getenv("GITHUB_REPO"),
		os.Getenv("GITHUB_FILE_PATH"),
		os.Getenv("GITHUB_BRANCH"),
	)
	if err != nil {
		return fmt.Errorf("building catalog store: %w", err)
	}

	cacheTTL := 5 * time.Minute
	if ttl := os.Getenv("CATALOG_CACHE_TTL"); ttl != "" {
		seconds, err := strconv.Atoi(ttl)
		if err != nil {
			return fmt.Errorf("invalid CATALOG_CACHE_TTL %q: %w", ttl, err)
		}
		cacheTTL = time.Duration(seconds) * time.Second
	}

	var cache catalog.Cache
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		redisCache := redis.NewCatalogCache(addr, os.Getenv("REDIS_PASSWORD"), cacheTTL)
		defer redisCache.Close()
		cache = redisCache
		slog.Info("catalog cache backed by redis", slog.String("Address", addr))
	} else {
		cache = catalog.NewMemoryCache(cacheTTL)
	}

	cat, err := catalog.NewConf(store, cache)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	var kafkaConf *kafka.Conf
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaConf, err = kafka.NewConf(strings.Split(brokers, ","))
		if err != nil {
			return fmt.Errorf("building kafka producer: %w", err)
		}
		defer kafkaConf.Close()
		slog.Info("sold-event publishing enabled", slog.String("Brokers", brokers))
	}

	var keys *auth.Keys
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		keys, err = auth.NewKeys(secret)
		if err != nil {
			return fmt.Errorf("building auth keys: %w", err)
		}
	} else {
		slog.Info("ADMIN_JWT_SECRET not set, admin refresh endpoint disabled")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	api := http.Server{
		Addr:         ":" + port,
		Handler:      handlers.API("/api", keys, cat, kafkaConf),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("Address", api.Addr))
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("shutdown started", slog.String("Signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			if closeErr := api.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}
