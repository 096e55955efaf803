package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"wageadvance/internal/domain/advance"
	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/banks"
	"wageadvance/internal/domain/company"
	"wageadvance/internal/domain/employee"
	"wageadvance/internal/domain/exchangerate"
	"wageadvance/internal/domain/gate"
	"wageadvance/internal/domain/notifications"
	"wageadvance/internal/domain/settlement"
	"wageadvance/internal/platform/cache"
	"wageadvance/internal/platform/config"
	"wageadvance/internal/platform/crypto"
	"wageadvance/internal/platform/db"
	"wageadvance/internal/platform/email"
	"wageadvance/internal/platform/jobs"
	"wageadvance/internal/platform/metrics"
	"wageadvance/internal/platform/realtime"
	"wageadvance/internal/platform/storage"
	advanceshandler "wageadvance/internal/transport/http/handlers/advances"
	audithandler "wageadvance/internal/transport/http/handlers/audit"
	authhandler "wageadvance/internal/transport/http/handlers/auth"
	bankshandler "wageadvance/internal/transport/http/handlers/banks"
	companieshandler "wageadvance/internal/transport/http/handlers/companies"
	employeeshandler "wageadvance/internal/transport/http/handlers/employees"
	notificationshandler "wageadvance/internal/transport/http/handlers/notifications"
	rateshandler "wageadvance/internal/transport/http/handlers/rates"
	"wageadvance/internal/transport/http/middleware"
)

const devJWTSecret = "dev-only-insecure-secret"

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler

	settle func(context.Context) (any, error)
}

// New connects to Postgres and Redis, prepares the schema and wires every
// service behind the HTTP router. Background jobs start with Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = devJWTSecret
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Redis, err = cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, exchange rate cache and shared rate limits disabled", "addr", cfg.RedisAddr, "err", err)
		app.Redis = nil
	}

	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	if !sealer.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set, payment data stored unencrypted")
	}
	objects, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	roster := realtime.NewBroker[employee.Event](32)
	notifier := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	auditor := audit.New(pool)

	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL)
	gateSvc := gate.NewService(gate.NewStore(pool), advance.IsBillingDate)
	advanceSvc := advance.NewService(
		advance.NewStore(pool),
		gateSvc,
		advance.NewCalculator(cfg.AdvanceCapRatio),
		advance.FeePolicy{Rate: cfg.AdvanceFeeRate, Minimum: cfg.AdvanceMinAmount},
		notifier,
	)
	employeeSvc := employee.NewService(employee.NewStore(pool), sealer, objects, notifier, roster, cfg.MaxUploadBytes)
	companySvc := company.NewService(company.NewStore(pool), notifier)
	settlementSvc := settlement.NewService(settlement.NewStore(pool), notifier)
	rateSvc := exchangerate.NewService(exchangerate.NewStore(pool), app.Redis, cfg.ExchangeRateTTL)
	bankSvc := banks.NewService(banks.NewStore(pool))

	app.Jobs = jobs.New(pool)
	runSettlement := func(ctx context.Context) (any, error) {
		summary, err := settlementSvc.Run(ctx)
		return summary, err
	}
	app.settle = runSettlement
	manualSettlement := func(ctx context.Context) (any, error) {
		return app.Jobs.RunNow(ctx, jobs.JobSettlement, runSettlement)
	}

	routes := []Routes{
		authhandler.NewHandler(authSvc, auditor),
		bankshandler.NewHandler(bankSvc),
		rateshandler.NewHandler(rateSvc, auditor),
		employeeshandler.NewHandler(employeeSvc, gateSvc, roster, auditor, app.Metrics, cfg.MaxUploadBytes),
		advanceshandler.NewHandler(advanceSvc, auditor, middleware.NewIdempotencyStore(pool), app.Metrics),
		companieshandler.NewHandler(companySvc, settlementSvc, manualSettlement, auditor),
		notificationshandler.NewHandler(notifier),
		audithandler.NewHandler(auditor),
	}
	var limits middleware.WindowCounter
	if app.Redis != nil {
		limits = middleware.NewRedisCounter(app.Redis)
	}
	app.Router = NewRouter(cfg, app.Metrics, limits, app.ready, routes...)
	return app, nil
}

// Start launches the job worker and the settlement schedule.
func (a *App) Start(ctx context.Context) {
	a.Jobs.Start(ctx)
	a.Jobs.Schedule(ctx, jobs.JobSettlement, a.Config.SettlementInterval, a.settle)
}

func (a *App) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
