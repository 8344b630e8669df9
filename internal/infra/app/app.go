package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
	"github.com/yenvi12/aifshop-auth/internal/infra/database"
	kafkainfra "github.com/yenvi12/aifshop-auth/internal/infra/kafka"
	"github.com/yenvi12/aifshop-auth/internal/infra/logger"
	"github.com/yenvi12/aifshop-auth/internal/infra/mailer"
	"github.com/yenvi12/aifshop-auth/internal/infra/provider"
	redisinfra "github.com/yenvi12/aifshop-auth/internal/infra/redis"
	"github.com/yenvi12/aifshop-auth/internal/infra/security"
	"github.com/yenvi12/aifshop-auth/internal/infra/telemetry"
	postgresrepo "github.com/yenvi12/aifshop-auth/internal/repository/postgres"
	redisrepo "github.com/yenvi12/aifshop-auth/internal/repository/redis"
	"github.com/yenvi12/aifshop-auth/internal/transport/http/middleware"
	"github.com/yenvi12/aifshop-auth/internal/transport/http/routes"
	"github.com/yenvi12/aifshop-auth/internal/usecase"
)

// Application owns every long-lived resource of the auth service.
type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	tracing *telemetry.TracerProvider
	events  *kafkainfra.Producer
}

// New wires configuration into a ready-to-run application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracing *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewTokenService(security.TokenServiceConfig{
		Issuer:          cfg.App.Name,
		AccessSecret:    []byte(cfg.JWT.AccessSecret),
		RefreshSecret:   []byte(cfg.JWT.RefreshSecret),
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	users := postgresrepo.NewUserRepository(pool)
	pending := redisrepo.NewPendingRegistrationRepository(redisClient.Client(), cfg.Redis.PendingPrefix)
	limiter := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix)

	var events port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	var mail port.MailSender
	if cfg.Mailer.APIURL != "" {
		mailClient, err := mailer.NewClient(cfg.Mailer, log)
		if err != nil {
			closeAll(pool, redisClient, producer)
			return nil, fmt.Errorf("init mailer: %w", err)
		}
		mail = mailClient
	} else {
		log.Info("mailer not configured, OTP mail dispatch disabled")
	}

	var identity port.IdentityProvider
	if cfg.Provider.BaseURL != "" {
		providerClient, err := provider.NewClient(cfg.Provider, log)
		if err != nil {
			closeAll(pool, redisClient, producer)
			return nil, fmt.Errorf("init identity provider: %w", err)
		}
		identity = providerClient
	}

	validator := security.DefaultPasswordValidator()

	authService, err := usecase.NewAuthService(cfg, users, limiter, tokens, events, identity, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	registrationService, err := usecase.NewRegistrationService(cfg, users, pending, limiter, validator, tokens, events, mail, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	userService, err := usecase.NewUserService(users, events, log)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init user service: %w", err)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Users:        userService,
		},
	})

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		tracing: tracing,
		events:  producer,
	}, nil
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if a.tracing != nil {
			if err := a.tracing.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("shutdown tracing", zap.Error(err))
			}
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close() {
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func closeAll(pool *pgxpool.Pool, redisClient *redisinfra.Client, producer *kafkainfra.Producer) {
	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		pool.Close()
	}
}
