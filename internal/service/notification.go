// notification.go — сервис уведомлений пользователей.
// Страницы читаются через LRU-кэш; любая запись, затрагивающая
// выборку пользователя, инвалидирует все его страницы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/repository"
)

// NotificationService — сервис уведомлений.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	cache     *CacheService
	logger    *slog.Logger
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(
	notifRepo repository.NotificationRepository,
	cache *CacheService,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		cache:     cache,
		logger:    logger.With(slog.String("component", "notification_service")),
	}
}

// Notify создаёт уведомление для пользователя.
// Вызывается другими сервисами (рецензирование документов).
func (s *NotificationService) Notify(ctx context.Context, userID, content string) error {
	n := &model.Notification{
		ID:      uuid.New().String(),
		UserID:  userID,
		Content: content,
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("создание уведомления: %w", err)
	}
	s.cache.InvalidateUser(userID)

	s.logger.Info("Уведомление создано",
		slog.String("notification_id", n.ID),
		slog.String("user_id", userID),
	)

	return nil
}

// ListPage возвращает страницу уведомлений пользователя.
// Читает через кэш: hit отдаёт закэшированную страницу,
// miss идёт в БД и кладёт результат в кэш.
// page — с единицы; limit > 0.
func (s *NotificationService) ListPage(ctx context.Context, userID string, page, limit int) (*model.NotificationPage, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w: page и limit должны быть положительными", ErrValidation)
	}

	key := PageKey(userID, page, limit)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	offset := (page - 1) * limit
	items, total, err := s.notifRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение уведомлений: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	result := &model.NotificationPage{
		Items:       items,
		TotalPages:  totalPages,
		CurrentPage: page,
	}

	s.cache.Set(key, result)
	return result, nil
}

// MarkRead помечает уведомление прочитанным.
// UPDATE в repository ограничен владельцем, поэтому чужой запрос
// не оставляет побочного эффекта. ErrNotFound от repository означает
// либо неизвестный id, либо чужое уведомление — различаем повторным
// чтением без мутации.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*model.Notification, error) {
	n, err := s.notifRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if _, getErr := s.notifRepo.GetByID(ctx, notificationID); getErr == nil {
				return nil, ErrForbidden
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("пометка уведомления: %w", err)
	}

	s.cache.InvalidateUser(userID)
	return n, nil
}

// Delete удаляет уведомление и инвалидирует кэш владельца.
func (s *NotificationService) Delete(ctx context.Context, notificationID string) error {
	ownerID, err := s.notifRepo.Delete(ctx, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление уведомления: %w", err)
	}

	s.cache.InvalidateUser(ownerID)
	return nil
}

// MarkAllRead помечает все уведомления пользователя прочитанными.
// Возвращает количество затронутых записей. Повторный вызов — 0 без ошибки.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.notifRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("пометка всех уведомлений: %w", err)
	}
	if n > 0 {
		s.cache.InvalidateUser(userID)
	}

	s.logger.Info("Уведомления помечены прочитанными",
		slog.String("user_id", userID),
		slog.Int("count", n),
	)

	return n, nil
}
