// forum.go — сервис форума: темы, ответы, лайки.
// Удалять тему или ответ может только автор.
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

// ForumService — сервис форума.
type ForumService struct {
	forumRepo repository.ForumRepository
	userRepo  repository.UserRepository
	logger    *slog.Logger
}

// NewForumService создаёт сервис форума.
func NewForumService(
	forumRepo repository.ForumRepository,
	userRepo repository.UserRepository,
	logger *slog.Logger,
) *ForumService {
	return &ForumService{
		forumRepo: forumRepo,
		userRepo:  userRepo,
		logger:    logger.With(slog.String("component", "forum_service")),
	}
}

// CreateThread создаёт тему форума.
func (s *ForumService) CreateThread(ctx context.Context, userID, title, content, category string) (*model.Thread, error) {
	if userID == "" || title == "" || content == "" || category == "" {
		return nil, fmt.Errorf("%w: user_id, title, content и category обязательны", ErrValidation)
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь '%s' не найден", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("проверка автора: %w", err)
	}

	th := &model.Thread{
		ID:       uuid.New().String(),
		UserID:   userID,
		Title:    title,
		Content:  content,
		Category: category,
	}

	if err := s.forumRepo.CreateThread(ctx, th); err != nil {
		return nil, fmt.Errorf("создание темы: %w", err)
	}
	th.AuthorName = author.Name

	s.logger.Info("Тема создана",
		slog.String("thread_id", th.ID),
		slog.String("user_id", userID),
	)

	return th, nil
}

// ThreadWithPosts — тема вместе с ответами.
type ThreadWithPosts struct {
	Thread *model.Thread
	Posts  []*model.Post
}

// GetThread возвращает тему с ответами.
// callerID влияет только на флаг caller_has_liked.
func (s *ForumService) GetThread(ctx context.Context, id, callerID string) (*ThreadWithPosts, error) {
	th, err := s.forumRepo.GetThread(ctx, id, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение темы: %w", err)
	}

	posts, err := s.forumRepo.ListPosts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение ответов темы: %w", err)
	}

	return &ThreadWithPosts{Thread: th, Posts: posts}, nil
}

// ListThreads возвращает темы, опционально отфильтрованные поиском
// по заголовку и тексту.
func (s *ForumService) ListThreads(ctx context.Context, search, callerID string) ([]*model.Thread, error) {
	threads, err := s.forumRepo.ListThreads(ctx, search, callerID)
	if err != nil {
		return nil, fmt.Errorf("получение списка тем: %w", err)
	}
	return threads, nil
}

// DeleteThread удаляет тему. Разрешено только автору.
func (s *ForumService) DeleteThread(ctx context.Context, id, callerID string) error {
	th, err := s.forumRepo.GetThread(ctx, id, "")
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение темы: %w", err)
	}
	if th.UserID != callerID {
		return fmt.Errorf("%w: удалять тему может только автор", ErrForbidden)
	}

	if err := s.forumRepo.DeleteThread(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление темы: %w", err)
	}

	s.logger.Info("Тема удалена",
		slog.String("thread_id", id),
		slog.String("user_id", callerID),
	)

	return nil
}

// CreatePost создаёт ответ в теме.
func (s *ForumService) CreatePost(ctx context.Context, threadID, userID, content string) (*model.Post, error) {
	if threadID == "" || userID == "" || content == "" {
		return nil, fmt.Errorf("%w: thread_id, user_id и content обязательны", ErrValidation)
	}

	if _, err := s.forumRepo.GetThread(ctx, threadID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: тема '%s' не найдена", ErrNotFound, threadID)
		}
		return nil, fmt.Errorf("проверка темы: %w", err)
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь '%s' не найден", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("проверка автора: %w", err)
	}

	p := &model.Post{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		UserID:   userID,
		Content:  content,
	}

	if err := s.forumRepo.CreatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("создание ответа: %w", err)
	}
	p.AuthorName = author.Name

	return p, nil
}

// DeletePost удаляет ответ. Разрешено только автору.
func (s *ForumService) DeletePost(ctx context.Context, id, callerID string) error {
	p, err := s.forumRepo.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение ответа: %w", err)
	}
	if p.UserID != callerID {
		return fmt.Errorf("%w: удалять ответ может только автор", ErrForbidden)
	}

	if err := s.forumRepo.DeletePost(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление ответа: %w", err)
	}
	return nil
}

// ToggleLike ставит или снимает лайк пользователя на теме.
func (s *ForumService) ToggleLike(ctx context.Context, threadID, userID string) (count int, liked bool, err error) {
	if threadID == "" || userID == "" {
		return 0, false, fmt.Errorf("%w: thread_id и user_id обязательны", ErrValidation)
	}

	if _, err := s.forumRepo.GetThread(ctx, threadID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, false, ErrNotFound
		}
		return 0, false, fmt.Errorf("проверка темы: %w", err)
	}

	count, liked, err = s.forumRepo.ToggleLike(ctx, threadID, userID)
	if err != nil {
		return 0, false, fmt.Errorf("переключение лайка: %w", err)
	}
	return count, liked, nil
}
