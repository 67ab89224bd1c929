package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/campusgate/edu-gateway/internal/api/http"
	"github.com/campusgate/edu-gateway/internal/api/http/handlers"
	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/events"
	"github.com/campusgate/edu-gateway/internal/oauth"
	"github.com/campusgate/edu-gateway/internal/observability"
	"github.com/campusgate/edu-gateway/internal/persistence"
	"github.com/campusgate/edu-gateway/internal/repository"
	"github.com/campusgate/edu-gateway/internal/service"
	"github.com/campusgate/edu-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, cfg.Audit))

	identityRepo := repository.NewMemoryIdentityRepository()
	if pg.Enabled() {
		identityRepo = repository.NewIdentityRepository(pg.PoolHandle())
	}
	stateRepo := repository.NewMemoryOAuthStateRepository(time.Now)
	if redis.Enabled() {
		stateRepo = repository.NewRedisOAuthStateRepository(redis.Client)
	}

	deps := service.GatewayDependencies{
		Identities: identityRepo,
		States:     stateRepo,
		Events:     dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}
	if cfg.OAuth.GoogleEnabled() {
		deps.Provider = oauth.NewGoogleProvider(cfg.OAuth)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; google sign-in disabled")
	}
	gateway := service.NewAuthGateway(*cfg, deps)

	if cfg.Auth.SeedDemoUsers {
		seedDemoIdentities(ctx, identityRepo, gateway, logger)
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:       handlers.NewAuthHandler(gateway),
		OAuth:      handlers.NewOAuthHandler(gateway, cfg.OAuth.StateTTL(), cfg.OAuth.SecureCookies),
		Dashboard:  handlers.NewDashboardHandler(),
		Users:      handlers.NewUsersHandler(service.NewIdentityService(identityRepo)),
		Authorizer: gateway,
		Metrics:    metrics,
		RateLimit:  httptransport.RateLimit(cfg.RateLimit),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func seedDemoIdentities(ctx context.Context, repo repository.IdentityRepository, gateway *service.AuthGateway, logger *zap.Logger) {
	for _, identity := range repository.DemoIdentities(gateway.HashPassword) {
		identity := identity
		if _, err := repo.GetByEmail(ctx, identity.Email); err == nil {
			continue
		}
		if err := repo.Create(ctx, &identity); err != nil {
			logger.Warn("seed demo identity", zap.String("email", identity.Email), zap.Error(err))
			continue
		}
		logger.Info("seeded demo identity", zap.String("email", identity.Email), zap.String("role", string(identity.Role)))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
