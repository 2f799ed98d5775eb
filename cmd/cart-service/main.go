package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/cache"
	"github.com/BouzirJawad/cart-micro/internal/config"
	cartgrpc "github.com/BouzirJawad/cart-micro/internal/grpc"
	carthttp "github.com/BouzirJawad/cart-micro/internal/http"
	"github.com/BouzirJawad/cart-micro/internal/logs"
	"github.com/BouzirJawad/cart-micro/internal/poller"
	"github.com/BouzirJawad/cart-micro/internal/repository"
	"github.com/BouzirJawad/cart-micro/internal/service"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const healthCheckInterval = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logs.New(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cart service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("cart service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	cartCache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	carts := service.NewCartService(repo, cartCache, service.WithLogger(logger))

	handler := carthttp.NewCartHandler(carts, cfg.RequestTimeout)
	router := carthttp.NewRouter(handler, carthttp.RouterConfig{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Logger:             logger,
		Store:              repo,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(router, "cart-service"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcListener net.Listener
	if cfg.GRPCPort > 0 {
		grpcListener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return errors.Wrap(err, "failed to listen for grpc")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("cart service listening", slog.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})

	var healthServer *cartgrpc.HealthServer
	if grpcListener != nil {
		healthServer = cartgrpc.NewHealthServer(repo, healthCheckInterval, logger)

		g.Go(func() error {
			logger.Info("grpc health listening", slog.Int("port", cfg.GRPCPort))
			return healthServer.Serve(grpcListener)
		})
		g.Go(func() error {
			healthServer.Watch(gctx)
			return nil
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		checkouts := poller.NewPoller(carts, logger, poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		g.Go(func() error {
			defer checkouts.Close()
			logger.Info("checkout consumer started", slog.Any("brokers", cfg.KafkaBrokers))
			checkouts.Run(gctx)
			return nil
		})
	}

	// Shutdown when a signal arrives or any component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down cart service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if healthServer != nil {
			healthServer.GracefulStop()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "http shutdown failed")
		}
		return nil
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.CartRepository, func(), error) {
	if cfg.MongoURL == "" {
		logger.Warn("MONGODB_URL not set, carts are kept in memory")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx, cfg.GuestCartTTL); err != nil {
		_ = db.Client().Disconnect(context.Background())
		return nil, nil, err
	}
	logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

	return repo, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := db.Client().Disconnect(ctx); err != nil {
			logger.Error("failed to disconnect MongoDB", slog.Any("error", err))
		}
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.CartCache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NopCache{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "redis ping failed")
	}
	logger.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))

	breaker := cache.NewBreakerCache(cache.NewRedisCache(client), cache.BreakerSettings{}, logger)
	return breaker, func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}, nil
}
