// announcement.go — сервис объявлений фирмы.
// Публикация и удаление доступны только администраторам
// (проверяется на уровне HTTP-обработчиков).
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

// AnnouncementService — сервис объявлений.
type AnnouncementService struct {
	repo   repository.AnnouncementRepository
	logger *slog.Logger
}

// NewAnnouncementService создаёт сервис объявлений.
func NewAnnouncementService(repo repository.AnnouncementRepository, logger *slog.Logger) *AnnouncementService {
	return &AnnouncementService{
		repo:   repo,
		logger: logger.With(slog.String("component", "announcement_service")),
	}
}

// AnnouncementPage — страница объявлений.
type AnnouncementPage struct {
	Items       []*model.Announcement
	TotalPages  int
	CurrentPage int
}

// Create публикует объявление.
func (s *AnnouncementService) Create(ctx context.Context, title, content string) (*model.Announcement, error) {
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title и content обязательны", ErrValidation)
	}

	a := &model.Announcement{
		ID:      uuid.New().String(),
		Title:   title,
		Content: content,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("создание объявления: %w", err)
	}

	s.logger.Info("Объявление опубликовано",
		slog.String("announcement_id", a.ID),
		slog.String("title", title),
	)

	return a, nil
}

// ListPage возвращает страницу объявлений (новые первыми).
func (s *AnnouncementService) ListPage(ctx context.Context, page, limit int) (*AnnouncementPage, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w: page и limit должны быть положительными", ErrValidation)
	}

	offset := (page - 1) * limit
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение объявлений: %w", err)
	}

	return &AnnouncementPage{
		Items:       items,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// Delete удаляет объявление.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление объявления: %w", err)
	}

	s.logger.Info("Объявление удалено", slog.String("announcement_id", id))
	return nil
}
