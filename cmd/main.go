package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"PartyTonight-App/internal/config"
	domainRepo "PartyTonight-App/internal/domain/repository"
	"PartyTonight-App/internal/domain/service"
	"PartyTonight-App/internal/handler"
	"PartyTonight-App/internal/infrastructure/database"
	"PartyTonight-App/internal/infrastructure/firestore"
	"PartyTonight-App/internal/infrastructure/lock"
	"PartyTonight-App/internal/infrastructure/logger"
	"PartyTonight-App/internal/repository"
	"PartyTonight-App/internal/usecase"
)

const serviceName = "PartyTonight-App"

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if !envLoaded {
		log.Warn(".envファイルが見つからないため環境変数のみを使用")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal("依存関係の初期化に失敗", "error", err)
	}
	defer deps.close()

	searchService := service.NewProximitySearchService(deps.repo, log, service.DefaultProximitySearchOptions())
	storeService := service.NewPartyStoreService(deps.repo, deps.locker, log)
	partyUseCase := usecase.NewPartyUseCase(searchService, storeService, usecase.PartySearchSettings{
		RadiusMeters: cfg.SearchRadiusMeters,
		MaxResults:   cfg.MaxResults,
		MaxPartyAge:  cfg.MaxPartyAge,
	}, time.Now)

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handler.NewPartyHandler(partyUseCase, log),
		handler.NewHealthHandler(serviceName, deps.health),
		cfg.RequestTimeout,
		log,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("サーバーを起動",
			"port", cfg.Port,
			"store", cfg.StoreBackend,
			"lock", cfg.LockBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("サーバーの起動に失敗", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("シャットダウンを開始")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("シャットダウンに失敗", "error", err)
	}
	log.Info("サーバーを停止")
}

// dependencies バックエンド設定に応じて組み立てたストアとロック
type dependencies struct {
	repo    domainRepo.PartiesRepository
	locker  domainRepo.CoordinateLocker
	health  map[string]handler.HealthChecker
	closers []func() error
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func buildDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (*dependencies, error) {
	deps := &dependencies{health: map[string]handler.HealthChecker{}}

	var pg *database.PostgreSQLClient
	postgresClient := func() (*database.PostgreSQLClient, error) {
		if pg != nil {
			return pg, nil
		}
		client, err := database.NewPostgreSQLClientWithRetry(ctx, cfg.DatabaseURL, 5, 2*time.Second)
		if err != nil {
			return nil, err
		}
		pg = client
		deps.closers = append(deps.closers, client.Close)
		deps.health["postgres"] = client.HealthCheck
		return client, nil
	}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		deps.repo = repository.NewMemoryPartiesRepository()
	case config.StorePostgres:
		client, err := postgresClient()
		if err != nil {
			deps.close()
			return nil, err
		}
		repo := repository.NewPostgresPartiesRepository(client)
		if err := repo.EnsureSchema(ctx); err != nil {
			deps.close()
			return nil, err
		}
		deps.repo = repo
	case config.StoreFirestore:
		client, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProjectID, log)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		deps.repo = repository.NewFirestorePartiesRepository(client.GetClient())
	case config.StoreSupabase:
		client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.health["supabase"] = func(context.Context) error { return client.HealthCheck() }
		deps.repo = repository.NewSupabasePartiesRepository(client)
	case config.StoreSQLite:
		client, err := database.NewSQLiteClient(cfg.SQLitePath)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		repo := repository.NewGormPartiesRepository(client.DB)
		if err := repo.AutoMigrate(); err != nil {
			deps.close()
			return nil, err
		}
		deps.repo = repo
	}

	switch cfg.LockBackend {
	case config.LockLocal:
		deps.locker = lock.NewLocalLocker()
	case config.LockRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redisへの疎通確認に失敗", "addr", cfg.RedisAddr, "error", err)
		}
		deps.closers = append(deps.closers, rdb.Close)
		deps.health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		locker, err := lock.NewRedisLocker(rdb, cfg.LockTTL, log)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.locker = locker
	case config.LockPostgres:
		client, err := postgresClient()
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.locker = lock.NewPostgresAdvisoryLocker(client.DB.DB, log)
	}

	return deps, nil
}
