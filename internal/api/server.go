// Package api serves the toll fee HTTP API.
package api

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tollfee/internal/config"
	"tollfee/internal/metrics"
	"tollfee/internal/model"
	"tollfee/internal/store"
	"tollfee/internal/toll"
	"tollfee/internal/webhooks"
)

// TopicPassages is the broker topic every passage change is published on.
const TopicPassages = "passages"

type Server struct {
	Store   store.Store
	Engine  *toll.Engine
	Broker  EventBroker
	Pub     *webhooks.Publisher
	Logger  *zap.Logger
	Config  config.Config
	limiter *rate.Limiter
	rdb     *redis.Client
}

// NewServer wires the store, engine, broker and publisher from cfg. Without
// DATABASE_URL passages live in memory; without REDIS_URL events stay in process.
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		Config:  cfg,
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}

	if cfg.DatabaseURL == "" {
		s.Store = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
				return nil, err
			}
		}
		s.Store = sp
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		s.rdb = redis.NewClient(opt)
		s.Broker = NewRedisBroker(s.rdb, logger)
	} else {
		s.Broker = NewBroker()
	}

	holidays := toll.DefaultHolidays()
	if cfg.HolidaysFile != "" {
		h, err := toll.LoadHolidays(cfg.HolidaysFile)
		if err != nil {
			return nil, err
		}
		holidays = h
	}
	cal, err := toll.NewCalendar(holidays)
	if err != nil {
		return nil, err
	}
	var opts []toll.Option
	switch cfg.ChargeCache {
	case config.CacheMemory:
		opts = append(opts, toll.WithCache(meteredCache{toll.NewMemoryCache(0)}))
	case config.CacheRedis:
		if s.rdb == nil {
			return nil, fmt.Errorf("CHARGE_CACHE=redis requires REDIS_URL")
		}
		opts = append(opts, toll.WithCache(meteredCache{toll.NewRedisCache(s.rdb, 24*time.Hour)}))
	}
	s.Engine = toll.NewEngine(cal, opts...)
	s.Pub = webhooks.NewPublisher(s.Store, cfg.WebhookURLs, cfg.WebhookSecret)

	logger.Info("server configured",
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("redis", s.rdb != nil),
		zap.String("holidays", holidays.Version),
		zap.String("charge_cache", cfg.ChargeCache),
		zap.Int("webhook_endpoints", len(cfg.WebhookURLs)))
	return s, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.WebhookAttempts, s.Logger.Named("webhooks"))
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var firstErr error
	if c, ok := s.Store.(interface{ Close() error }); ok {
		firstErr = c.Close()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// calculate runs the engine and records its metrics.
func (s *Server) calculate(passages []model.Passage) (map[string]model.Charge, error) {
	start := time.Now()
	charges, err := s.Engine.Calculate(passages)
	metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	metrics.CalculationBatchSize.Observe(float64(len(passages)))
	return charges, err
}

// publish notifies websocket subscribers and enqueues webhooks for one change.
func (s *Server) publish(ctx context.Context, eventType string, data any) {
	s.Broker.Publish(TopicPassages, Event{Type: eventType, Data: data})
	if _, err := s.Pub.Emit(ctx, eventType, data); err != nil {
		s.Logger.Warn("emit webhook", zap.String("event_type", eventType), zap.Error(err))
	}
}

// meteredCache counts group cache hits and misses.
type meteredCache struct {
	toll.GroupCache
}

func (c meteredCache) Get(key string) ([]model.Charge, bool) {
	v, ok := c.GroupCache.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}
