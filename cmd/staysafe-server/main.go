// Command staysafe-server serves the booking authentication API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/fieldcrypt"
	"github.com/MrEthical07/staysafe/internal/config"
	"github.com/MrEthical07/staysafe/internal/httpapi"
	"github.com/MrEthical07/staysafe/internal/migrations"
	exportprom "github.com/MrEthical07/staysafe/metrics/export/prometheus"
	"github.com/MrEthical07/staysafe/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "staysafe-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := staysafe.New().WithConfig(cfg.Engine()).WithLogger(logger)

	closeStores, err := wireStores(ctx, cfg, logger, builder)
	if err != nil {
		return err
	}
	defer closeStores()

	sender, err := codeSender(cfg, logger)
	if err != nil {
		return err
	}
	builder.WithCodeSender(sender)

	cipher, err := fieldcrypt.New(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("field cipher: %w", err)
	}
	builder.WithFieldCipher(cipher)

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	logger.Info("security posture", zap.Any("report", engine.SecurityReport()))

	if cfg.AdminEmail != "" {
		p, created, err := engine.ProvisionAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
		if err != nil {
			return fmt.Errorf("provision admin: %w", err)
		}
		logger.Info("admin account ready", zap.String("email", p.Email), zap.Bool("created", created))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		exportprom.NewCollector(engine),
	)

	api := httpapi.New(engine, logger, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		TrustProxy:      cfg.TrustProxy,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		MaxBodyBytes:    httpapi.DefaultOptions().MaxBodyBytes,
		Metrics:         httpapi.NewMetrics(reg),
	})
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	root := http.NewServeMux()
	root.Handle("/", api.Handler())
	servers := []*http.Server{newServer(cfg.HTTPAddr, root)}
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metricsHandler)
		servers = append(servers, newServer(cfg.MetricsAddr, metricsMux))
	} else {
		root.Handle("GET /metrics", metricsHandler)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	return nil
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// wireStores attaches Postgres (or in-memory stores outside production)
// and the optional Redis request gate to b.
func wireStores(ctx context.Context, cfg config.Config, logger *zap.Logger, b *staysafe.Builder) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Run(ctx, db); err != nil {
			closeAll()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.WithAccountStore(accounts.NewPostgresStore(db)).WithAuditStore(auditlog.NewPostgresStore(db))
	} else {
		logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		b.WithAccountStore(accounts.NewMemoryStore()).WithAuditStore(auditlog.NewMemoryStore())
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.WithRedis(rdb)
	}

	return closeAll, nil
}

func codeSender(cfg config.Config, logger *zap.Logger) (notify.Sender, error) {
	if cfg.SMTP.Host == "" {
		if cfg.Production() {
			return nil, errors.New("SMTP_HOST is required in production")
		}
		logger.Warn("SMTP_HOST not set, verification codes are logged")
		return notify.LogSender{Logger: logger, RevealCode: true}, nil
	}
	return notify.NewSMTPSender(cfg.SMTP)
}
