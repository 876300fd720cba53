// Package app wires configuration, storage, services and transports into a
// runnable chat service instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/broadcast"
	"github.com/ashgrove-labs/chat-service/internal/config"
	repoPostgres "github.com/ashgrove-labs/chat-service/internal/domain/repository/postgres"
	repoRedis "github.com/ashgrove-labs/chat-service/internal/domain/repository/redis"
	eventsRedis "github.com/ashgrove-labs/chat-service/internal/events/redis"
	httpHandler "github.com/ashgrove-labs/chat-service/internal/handler/http"
	tcpHandler "github.com/ashgrove-labs/chat-service/internal/handler/tcp"
	wsHandler "github.com/ashgrove-labs/chat-service/internal/handler/ws"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/service"
	"github.com/ashgrove-labs/chat-service/internal/utils/shutdown"
	"github.com/ashgrove-labs/chat-service/migrations"
)

// App owns every long-lived component of one service instance.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	instanceID string

	pool        *pgxpool.Pool
	redisClient *redis.Client

	hub            *broadcast.Hub
	subscriber     *eventsRedis.Subscriber
	broadcaster    *broadcast.Broadcaster
	sessionService *service.SessionService

	tcpServer   *tcpHandler.Server
	wsServer    *http.Server
	adminServer *http.Server
}

// New builds the full dependency graph. Nothing is listening yet; call Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Database.AutoMigrate {
		logger.Info("Running database migrations")
		if err := migrations.Up(cfg.Database.DSN(), logger); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis is an accelerator and a bus, not a source of truth. Boot
		// continues in degraded single-instance mode.
		logger.Warn("Redis unreachable at startup, continuing in degraded mode", zap.Error(err))
	}

	masterKey, err := cfg.Security.MasterKeyBytes()
	if err != nil {
		pool.Close()
		return nil, err
	}
	keyring, err := security.NewKeyring(masterKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	passwordService, err := security.NewArgon2idPasswordService(security.DefaultArgon2idParams())
	if err != nil {
		pool.Close()
		return nil, err
	}

	// Each boot gets a fresh identity so loopback bus traffic is recognisable.
	instanceID := uuid.New().String()

	userRepo := repoPostgres.NewUserRepositoryPostgres(pool)
	sessionRepo := repoPostgres.NewSessionRepositoryPostgres(pool)
	messageRepo := repoPostgres.NewMessageRepositoryPostgres(pool)
	groupRepo := repoPostgres.NewGroupRepositoryPostgres(pool)
	inviteRepo := repoPostgres.NewGroupInviteRepositoryPostgres(pool)
	friendRepo := repoPostgres.NewFriendRepositoryPostgres(pool)
	presenceCache := repoRedis.NewPresenceCache(redisClient, logger, cfg.Session.TTL)

	hub := broadcast.NewHub(cfg.Chat.OutboxSize, logger)
	publisher := eventsRedis.NewPublisher(redisClient, instanceID, logger)
	subscriber := eventsRedis.NewSubscriber(redisClient, logger)
	broadcaster := broadcast.NewBroadcaster(hub, publisher, logger)

	encryption := security.NewAESGCMEncryptionService(keyring, logger)
	tokenGenerator := security.NewRandomTokenGenerator()

	authService := service.NewAuthService(
		userRepo, sessionRepo, passwordService, tokenGenerator,
		presenceCache, broadcaster, cfg.Session.TTL, logger,
	)
	sessionService := service.NewSessionService(
		sessionRepo, userRepo, presenceCache, broadcaster,
		cfg.Session.SweepInterval, logger,
	)
	messageService := service.NewMessageService(
		messageRepo, userRepo, groupRepo, encryption, broadcaster,
		cfg.Chat.MaxMessageLength, logger,
	)
	groupService := service.NewGroupService(groupRepo, inviteRepo, userRepo, broadcaster, logger)
	friendService := service.NewFriendService(friendRepo, userRepo, logger)

	tcpServer := tcpHandler.NewServer(authService, sessionService, messageService, groupService, friendService, logger)

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", wsHandler.NewServer(authService, messageService, hub, logger))

	return &App{
		cfg:            cfg,
		logger:         logger,
		instanceID:     instanceID,
		pool:           pool,
		redisClient:    redisClient,
		hub:            hub,
		subscriber:     subscriber,
		broadcaster:    broadcaster,
		sessionService: sessionService,
		tcpServer:      tcpServer,
		wsServer:       &http.Server{Addr: cfg.Server.WSAddr, Handler: wsMux},
		adminServer:    &http.Server{Addr: cfg.Server.HTTPAddr, Handler: httpHandler.SetupRouter(keyring, logger)},
	}, nil
}

// Run starts every listener and blocks until a termination signal, then
// shuts the instance down in dependency order.
func (a *App) Run(ctx context.Context) error {
	if err := a.subscriber.Start(ctx, a.broadcaster.HandleEnvelope(a.instanceID)); err != nil {
		a.logger.Warn("Event bus subscription unavailable", zap.Error(err))
	}
	a.sessionService.StartSweeper(ctx)

	if err := a.tcpServer.Start(a.cfg.Server.TCPAddr); err != nil {
		return err
	}

	go func() {
		a.logger.Info("WebSocket server listening", zap.String("addr", a.cfg.Server.WSAddr))
		if err := a.wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("WebSocket server failed", zap.Error(err))
		}
	}()
	go func() {
		a.logger.Info("Admin HTTP server listening", zap.String("addr", a.cfg.Server.HTTPAddr))
		if err := a.adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	shutdown.Wait(a.cfg.Server.ShutdownTimeout, a.logger,
		func(ctx context.Context) error { return a.tcpServer.Shutdown(ctx) },
		func(ctx context.Context) error { return a.wsServer.Shutdown(ctx) },
		func(ctx context.Context) error { return a.adminServer.Shutdown(ctx) },
		func(context.Context) error { a.hub.CloseAll(); return nil },
		func(context.Context) error { return a.subscriber.Stop() },
		func(context.Context) error { a.sessionService.Stop(); return nil },
		func(context.Context) error { return a.redisClient.Close() },
		func(context.Context) error { a.pool.Close(); return nil },
	)

	a.logger.Info("Shutdown complete")
	return nil
}
