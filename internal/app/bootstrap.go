// Package app is the composition root shared by the server, the serverless
// entry point and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"hris-portal/internal/account"
	"hris-portal/internal/auth"
	"hris-portal/internal/config"
	"hris-portal/internal/db"
	"hris-portal/internal/maintenance"
	"hris-portal/internal/notify"
	"hris-portal/internal/observability"
	"hris-portal/internal/ratelimit"
)

const startupTimeout = 30 * time.Second

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Config  *config.Config
	Logger  *observability.Logger
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.Environment)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	database, repo, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers := []func() error{database.Close}
	fail := func(err error) (*Runtime, error) {
		_ = closeAll(closers)
		return nil, err
	}

	if cfg.RunMigrationsOnStartup {
		if err := db.RunMigrations(ctx, database); err != nil {
			return fail(err)
		}
		logger.Info("migrations_applied", nil)
	}

	codec, err := auth.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return fail(fmt.Errorf("token codec: %w", err))
	}
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return fail(fmt.Errorf("password hasher: %w", err))
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return fail(err)
	}

	authService := auth.NewService(repo, codec, hasher, notifier, logger)
	authService.WithResetConfig(cfg.ResetTokenTTL, cfg.ResetLinkBaseURL, cfg.ResetUniformResponse)

	if err := authService.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminTenant); err != nil {
		return fail(fmt.Errorf("bootstrap admin: %w", err))
	}

	limiter, closeLimiter, err := newLimiter(cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLimiter)

	handler := NewRouter(RouterDeps{
		Logger:   logger,
		Gate:     auth.NewGate(codec),
		Auth:     auth.NewHandler(authService, logger),
		Accounts: account.NewHandler(account.NewService(repo, hasher, logger), logger),
		Cleanup:  maintenance.NewCleanupHandler(repo, logger, cfg.CronSecret, cfg.CleanupBatch),
		Limiter:  limiter,
		Limits: RateLimits{
			Login:          ratelimit.LoginPolicy(cfg.LoginRateLimit, cfg.LoginRateWindow),
			ForgetPassword: ratelimit.ForgetPasswordPolicy(cfg.ForgetRateLimit, cfg.ForgetRateWindow),
			ResetPassword:  ratelimit.ResetPasswordPolicy(cfg.ResetRateLimit, cfg.ResetRateWindow),
		},
		Ping:             repo.Ping,
		AllowedOrigins:   cfg.AllowedOrigins,
		TrustedProxyHops: cfg.TrustedProxyHops,
	})

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return closeAll(closers)
		},
	}, nil
}

// OpenStore connects to PostgreSQL and returns the credential store on top
// of it. The caller owns the returned *sql.DB.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, *auth.Repository, error) {
	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return database, auth.NewRepository(database, cfg.StoreTimeout), nil
}

func newNotifier(cfg *config.Config, logger *observability.Logger) (auth.Notifier, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp_not_configured", map[string]any{"environment": cfg.Environment})
		return notify.NewLogNotifier(logger), nil
	}

	notifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:         cfg.SMTPHost,
		Port:         cfg.SMTPPort,
		Username:     cfg.SMTPUsername,
		Password:     cfg.SMTPPassword,
		From:         cfg.SMTPFrom,
		SupportEmail: cfg.SupportEmail,
		ResetTTL:     cfg.ResetTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp notifier: %w", err)
	}
	return notifier, nil
}

func newLimiter(cfg *config.Config, logger *observability.Logger) (ratelimit.Limiter, func() error, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(), func() error { return nil }, nil
	}

	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis_unreachable", map[string]any{"error": err.Error()})
	}

	return ratelimit.NewRedisLimiter(client, "hris:rl"), func() error {
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
		return nil
	}, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
