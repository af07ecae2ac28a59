// reconcile.go — фоновая уборка застрявших резерваций.
//
// Регистрация, загрузка blob и подтверждение — три независимых сетевых
// операции клиента без сквозной транзакции. Сбой между шагами оставляет
// запись в состоянии reserved без содержимого. ReconcileService
// периодически удаляет такие записи (и их blob best-effort), освобождая
// хэш для повторной регистрации.
//
// Prometheus-метрики:
//   - cp_reconcile_runs_total — количество проходов (по результату)
//   - cp_reconcile_reaped_total — количество снятых резерваций
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/clientportal/internal/blobstore"
	"github.com/arturkryukov/clientportal/internal/repository"
)

// Prometheus-метрики reconciler'а.
var (
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cp_reconcile_runs_total",
		Help: "Количество проходов уборки застрявших резерваций.",
	}, []string{"result"}) // result: ok, error

	reconcileReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_reconcile_reaped_total",
		Help: "Количество снятых застрявших резерваций.",
	})
)

// reconcileBatchSize — максимум записей за один проход.
const reconcileBatchSize = 100

// ReconcileService — фоновый сервис уборки застрявших резерваций.
type ReconcileService struct {
	fileRepo       repository.FileRegistryRepository
	blobs          blobstore.Store
	interval       time.Duration
	reserveTimeout time.Duration
	logger         *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconcileService создаёт сервис уборки резерваций.
func NewReconcileService(
	fileRepo repository.FileRegistryRepository,
	blobs blobstore.Store,
	interval time.Duration,
	reserveTimeout time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		fileRepo:       fileRepo,
		blobs:          blobs,
		interval:       interval,
		reserveTimeout: reserveTimeout,
		logger:         logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину с периодической уборкой.
// Вызывается один раз при старте приложения.
func (s *ReconcileService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Уборка застрявших резерваций запущена",
			slog.String("interval", s.interval.String()),
			slog.String("reserve_timeout", s.reserveTimeout.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Уборка застрявших резерваций остановлена")
				return
			case <-ticker.C:
				reaped, err := s.RunOnce(ctx)
				if err != nil {
					reconcileRunsTotal.WithLabelValues("error").Inc()
					s.logger.Error("Ошибка уборки резерваций", slog.String("error", err.Error()))
					continue
				}
				reconcileRunsTotal.WithLabelValues("ok").Inc()
				if reaped > 0 {
					s.logger.Info("Проход уборки завершён", slog.Int("reaped", reaped))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *ReconcileService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunOnce выполняет один проход: удаляет записи, застрявшие в reserved
// дольше reserveTimeout. Возвращает количество снятых резерваций.
func (s *ReconcileService) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.reserveTimeout)

	stale, err := s.fileRepo.ListStaleReservations(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("выборка застрявших резерваций: %w", err)
	}

	reaped := 0
	for _, f := range stale {
		if ctx.Err() != nil {
			return reaped, ctx.Err()
		}

		if err := s.fileRepo.DeleteReserved(ctx, f.FileHash); err != nil {
			// Запись могла уйти из reserved между выборкой и удалением
			// (клиент успел отметить загрузку) — пропускаем.
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			s.logger.Warn("Не удалось снять резервацию",
				slog.String("file_hash", f.FileHash),
				slog.String("error", err.Error()),
			)
			continue
		}

		// Blob мог успеть загрузиться до сбоя клиента — чистим best-effort.
		if err := s.blobs.Delete(ctx, f.UserID, f.FileHash); err != nil {
			s.logger.Warn("Не удалось удалить blob застрявшей резервации",
				slog.String("file_hash", f.FileHash),
				slog.String("error", err.Error()),
			)
		}

		reaped++
		reconcileReapedTotal.Inc()

		s.logger.Info("Застрявшая резервация снята",
			slog.String("file_hash", f.FileHash),
			slog.String("user_id", f.UserID),
			slog.Time("created_at", f.CreatedAt),
		)
	}

	return reaped, nil
}
