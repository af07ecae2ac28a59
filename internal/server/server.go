// Пакет server — HTTP-сервер Client Portal с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/clientportal/internal/api/handlers"
	"github.com/arturkryukov/clientportal/internal/api/middleware"
	"github.com/arturkryukov/clientportal/internal/config"
)

// Handlers — набор доменных обработчиков для маршрутизации.
type Handlers struct {
	Files         *handlers.FilesHandler
	Notifications *handlers.NotificationsHandler
	Users         *handlers.UsersHandler
	Forum         *handlers.ForumHandler
	Announcements *handlers.AnnouncementsHandler
	Health        *handlers.HealthHandler
}

// Server — HTTP-сервер Client Portal.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// middlewares — дополнительные middleware (metrics, logging, JWT), добавляются в порядке переданного среза.
func New(cfg *config.Config, logger *slog.Logger, h *Handlers, middlewares ...func(http.Handler) http.Handler) *Server {
	router := chi.NewRouter()

	// Применяем переданные middleware
	for _, mw := range middlewares {
		router.Use(mw)
	}

	// Ops-маршруты (исключены из JWT через JWTAuthWithExclusions)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Файловый реестр
		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.Files.Register)
			r.Get("/", h.Files.List)
			r.With(middleware.RequireAdmin()).Patch("/", h.Files.UpdateReview)
			r.Get("/{hash}", h.Files.Exists)
			r.Post("/{hash}/uploaded", h.Files.MarkUploaded)
			r.Post("/{hash}/confirm", h.Files.Confirm)
			r.Delete("/{hash}", h.Files.Delete)
		})

		// Уведомления
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notifications.List)
			r.Patch("/", h.Notifications.MarkAllRead)
			r.Patch("/{id}", h.Notifications.MarkRead)
			r.Delete("/{id}", h.Notifications.Delete)
		})

		// Пользователи
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.Users.Create)
			r.Get("/", h.Users.List)
			r.Get("/{id}", h.Users.Get)
			r.Put("/{id}", h.Users.Update)
			r.Delete("/{id}", h.Users.Delete)
		})

		// Форум
		r.Route("/forum", func(r chi.Router) {
			r.Get("/threads", h.Forum.ListThreads)
			r.Post("/threads", h.Forum.CreateThread)
			r.Get("/threads/{id}", h.Forum.GetThread)
			r.Delete("/threads/{id}", h.Forum.DeleteThread)
			r.Post("/threads/{id}/like", h.Forum.ToggleLike)
			r.Post("/posts", h.Forum.CreatePost)
			r.Delete("/posts/{id}", h.Forum.DeletePost)
		})

		// Объявления
		r.Route("/announcements", func(r chi.Router) {
			r.Get("/", h.Announcements.List)
			r.With(middleware.RequireAdmin()).Post("/", h.Announcements.Create)
			r.With(middleware.RequireAdmin()).Delete("/{id}", h.Announcements.Delete)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// JWTAuthWithExclusions оборачивает middleware, пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без middleware.
func JWTAuthWithExclusions(mw func(http.Handler) http.Handler, excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем middleware
			mw(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
