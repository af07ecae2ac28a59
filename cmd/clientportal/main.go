// Точка входа Client Portal — backend клиентского портала.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт blob store клиент, сервисный слой и API handlers,
// запускает фоновые задачи (reconciler резерваций, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/clientportal/internal/api/handlers"
	"github.com/arturkryukov/clientportal/internal/api/middleware"
	"github.com/arturkryukov/clientportal/internal/blobstore"
	"github.com/arturkryukov/clientportal/internal/config"
	"github.com/arturkryukov/clientportal/internal/database"
	"github.com/arturkryukov/clientportal/internal/repository"
	"github.com/arturkryukov/clientportal/internal/server"
	"github.com/arturkryukov/clientportal/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Client Portal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("CP_DEPHEALTH_GROUP") == "" {
		logger.Warn("CP_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Blob store (S3-совместимое хранилище, presigned URLs)
	blobs, err := blobstore.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания blob store клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Blob store клиент создан",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)

	// 6. Repositories
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRegistryRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	forumRepo := repository.NewForumRepository(pool)
	annRepo := repository.NewAnnouncementRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 7. Кэш страниц уведомлений (LRU с TTL)
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)

	// 8. Services
	notificationsSvc := service.NewNotificationService(notifRepo, cache, logger)
	filesSvc := service.NewFileRegistryService(fileRepo, userRepo, notificationsSvc, blobs, logger)
	usersSvc := service.NewUserService(userRepo, cache, blobs, txRunner, logger)
	forumSvc := service.NewForumService(forumRepo, userRepo, logger)
	announcementsSvc := service.NewAnnouncementService(annRepo, logger)

	// 9. Reconciler зависших резерваций
	reconcileSvc := service.NewReconcileService(
		fileRepo, blobs,
		cfg.ReconcileInterval, cfg.ReserveTimeout,
		logger,
	)
	reconcileSvc.Start(ctx)

	// 9.1 topologymetrics — мониторинг зависимостей (PostgreSQL + IdP + S3)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"clientportal",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.S3Endpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Readiness checkers (PostgreSQL + IdP + S3)
	pgChecker := database.NewReadinessChecker(pool)
	idpChecker := middleware.NewIdPReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSClientTimeout)
	s3Checker := blobstore.NewReadinessChecker(cfg.S3Endpoint)
	healthHandler := handlers.NewHealthHandler(pgChecker, idpChecker, s3Checker)

	// 11. API handlers
	h := &server.Handlers{
		Files:         handlers.NewFilesHandler(filesSvc, logger),
		Notifications: handlers.NewNotificationsHandler(notificationsSvc, logger),
		Users:         handlers.NewUsersHandler(usersSvc, logger),
		Forum:         handlers.NewForumHandler(forumSvc, logger),
		Announcements: handlers.NewAnnouncementsHandler(announcementsSvc, logger),
		Health:        healthHandler,
	}

	// 12. JWT middleware
	// Адаптер UserService → middleware.AdminChecker: признак администратора
	// резолвится из локальной записи пользователя по sub.
	adminChecker := &adminCheckerAdapter{users: usersSvc}

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		adminChecker,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 13. Создание и запуск HTTP-сервера.
	// Health/metrics исключены из JWT-аутентификации.
	srv := server.New(cfg, logger, h,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		server.JWTAuthWithExclusions(jwtAuth.Middleware(), "/health/", "/metrics"),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	reconcileSvc.Stop()

	logger.Info("Client Portal остановлен")
}

// --- Вспомогательные типы ---

// adminCheckerAdapter — адаптер UserService → middleware.AdminChecker.
// Неизвестный sub трактуется как обычный пользователь без ошибки:
// учётная запись могла ещё не быть создана в портале.
type adminCheckerAdapter struct {
	users *service.UserService
}

func (a *adminCheckerAdapter) IsAdminByExternalUID(ctx context.Context, externalUID string) (bool, error) {
	u, err := a.users.GetByExternalUID(ctx, externalUID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin, nil
}
