package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/tripwatch/internal/api"
	"github.com/jengzang/tripwatch/internal/config"
	"github.com/jengzang/tripwatch/internal/database"
	"github.com/jengzang/tripwatch/internal/locations"
	"github.com/jengzang/tripwatch/internal/logging"
	"github.com/jengzang/tripwatch/internal/middleware"
	"github.com/jengzang/tripwatch/internal/notify"
	"github.com/jengzang/tripwatch/internal/observability"
	"github.com/jengzang/tripwatch/internal/poller"
	"github.com/jengzang/tripwatch/internal/repository"
	"github.com/jengzang/tripwatch/internal/service"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "Path to a YAML config file")
	issueToken := flag.String("issue-token", "", "Print an API token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "Lifetime of a token printed by -issue-token")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *issueToken != "" {
		token, err := middleware.IssueToken(cfg.Auth.JWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	logger := logging.New(cfg.Logging)

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.Database.Path}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()
	db := database.GetDB()

	metrics := observability.NewMetrics()

	announcer := newAnnouncer(cfg, metrics, logger)
	defer announcer.Close()

	client := locations.NewClient(cfg.Locations.BaseURL, cfg.Locations.Password, cfg.Locations.Timeout, logger)
	tripService := service.NewTripService(
		repository.NewTripRepository(db),
		repository.NewPingRepository(db),
		repository.NewRunRepository(db),
		client,
		announcer,
		cfg.SegmentationParams(),
		metrics,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	limiter.StartCleanup(ctx)

	// 初始化路由
	router := api.SetupRouter(api.Dependencies{
		Config:      cfg,
		TripService: tripService,
		Metrics:     metrics,
		Logger:      logger,
		RateLimiter: limiter,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server error: %v", err)
			stop()
		}
	}()

	if cfg.Poll.Enabled {
		p := poller.New(tripService, client, poller.Config{
			Interval: cfg.Poll.Interval,
			Lookback: cfg.Poll.Lookback,
			Names:    cfg.Poll.Subjects,
		}, logger)
		go func() {
			_ = p.Run(ctx)
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}

// newAnnouncer publishes to kafka when brokers are configured and to the log
// otherwise, de-duplicating through redis when an address is configured.
func newAnnouncer(cfg *config.Config, metrics *observability.Metrics, logger *logrus.Logger) *notify.Announcer {
	var sink notify.Sink
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		logger.Infof("Publishing trip events to kafka topic %s", cfg.Kafka.Topic)
		sink = notify.NewKafkaSink(notify.NewKafkaWriter(brokers, cfg.Kafka.Topic), logger)
	} else {
		sink = notify.NewLogSink(logger)
	}

	var claims notify.ClaimStore
	if cfg.Redis.Addr != "" {
		claims = notify.NewRedisClaims(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		logger.Warn("No redis configured, announced trips are only remembered in memory")
		claims = notify.NewMemoryClaims()
	}

	opts := notify.Options{
		App:            cfg.Notify.App,
		Points:         cfg.Notify.Points,
		LongTrip:       cfg.Notify.LongTrip,
		IncludeMedia:   cfg.Notify.IncludeMedia,
		MediaTolerance: cfg.Notify.MediaTolerance,
	}
	return notify.NewAnnouncer(sink, claims, opts, cfg.Notify.AnnounceTTL, metrics, logger)
}
