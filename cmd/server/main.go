package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/workchain-backend/internal/chain"
	chainmock "github.com/ignatzorin/workchain-backend/internal/chain/mock"
	chainrpc "github.com/ignatzorin/workchain-backend/internal/chain/rpc"
	"github.com/ignatzorin/workchain-backend/internal/config"
	"github.com/ignatzorin/workchain-backend/internal/db"
	"github.com/ignatzorin/workchain-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/workchain-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/workchain-backend/internal/http/router"
	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/repository"
	"github.com/ignatzorin/workchain-backend/internal/service"
	"github.com/ignatzorin/workchain-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Адаптер внешнего реестра. Mock допустим только вне production.
	var ledger chain.Ledger
	switch cfg.ChainAdapter {
	case "rpc":
		ledger = chainrpc.NewLedger(cfg.ChainRPCURL, cfg.ChainCallTimeout)
	case "mock":
		if cfg.Env == "production" {
			log.Fatal("main: mock-адаптер реестра запрещён в production")
		}
		ledger = chainmock.NewLedger()
	default:
		log.Fatalf("main: неизвестный адаптер реестра: %s", cfg.ChainAdapter)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	jobHistoryRepo := repository.NewJobHistoryRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	profileRepo := repository.NewProfileRepository(dbConn)
	ratingRepo := repository.NewRatingRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	reputationService := service.NewReputationService(profileRepo)
	escrowService := service.NewEscrowService(escrowRepo, ledger)
	jobService := service.NewJobService(jobRepo, escrowRepo, ledger, reputationService, notificationService)
	disputeService := service.NewDisputeService(disputeRepo, jobRepo, escrowRepo, ledger, reputationService, notificationService, cfg.DisputeVotingPeriod, cfg.DisputeQuorum, cfg.DisputeMinStake)
	ratingService := service.NewRatingService(ratingRepo, jobRepo, jobRepo, reputationService)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, ledger)

	// Фоновая обработка просроченных споров и сессий.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := disputeService.ResolveExpired(ctx); err != nil {
					log.Printf("main: обработка просроченных споров: %v", err)
				}
				if err := userRepo.DeleteExpiredSessions(ctx); err != nil {
					log.Printf("main: очистка просроченных сессий: %v", err)
				}
			}
		}
	})

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	jobHandler := httpHandlers.NewJobHandler(jobService, jobHistoryRepo)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	profileHandler := httpHandlers.NewProfileHandler(reputationService)
	ratingHandler := httpHandlers.NewRatingHandler(ratingService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, jobHandler, disputeHandler, escrowHandler, profileHandler, ratingHandler, withdrawalHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
