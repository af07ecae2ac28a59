// user.go — сервис пользователей портала.
// Профили сопоставляются с учётными записями identity provider
// по external_uid; признак администратора хранится локально.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/clientportal/internal/blobstore"
	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/repository"
)

// UserService — сервис пользователей.
type UserService struct {
	userRepo repository.UserRepository
	cache    *CacheService
	blobs    blobstore.Store
	txRunner *repository.TxRunner
	logger   *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(
	userRepo repository.UserRepository,
	cache *CacheService,
	blobs blobstore.Store,
	txRunner *repository.TxRunner,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		cache:    cache,
		blobs:    blobs,
		txRunner: txRunner,
		logger:   logger.With(slog.String("component", "user_service")),
	}
}

// Create создаёт пользователя. Email приводится к нижнему регистру
// в repository; дубликат email или external_uid — конфликт.
func (s *UserService) Create(ctx context.Context, name, email, externalUID string) (*model.User, error) {
	if name == "" || email == "" || externalUID == "" {
		return nil, fmt.Errorf("%w: name, email и external_uid обязательны", ErrValidation)
	}

	u := &model.User{
		ID:          uuid.New().String(),
		ExternalUID: externalUID,
		Name:        name,
		Email:       email,
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь с таким email или UID уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь создан",
		slog.String("user_id", u.ID),
		slog.String("external_uid", externalUID),
	)

	return u, nil
}

// GetByID возвращает пользователя по UUID.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}

// GetByEmail возвращает пользователя по email (регистронезависимо).
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя по email: %w", err)
	}
	return u, nil
}

// GetByExternalUID возвращает пользователя по идентификатору
// identity provider.
func (s *UserService) GetByExternalUID(ctx context.Context, externalUID string) (*model.User, error) {
	u, err := s.userRepo.GetByExternalUID(ctx, externalUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя по external_uid: %w", err)
	}
	return u, nil
}

// List возвращает всех пользователей.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка пользователей: %w", err)
	}
	return users, nil
}

// Update обновляет имя и email пользователя.
func (s *UserService) Update(ctx context.Context, id string, name, email *string) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя для обновления: %w", err)
	}

	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}

	if err := s.userRepo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: email уже занят", ErrConflict)
		}
		return nil, fmt.Errorf("обновление пользователя: %w", err)
	}

	s.logger.Info("Пользователь обновлён", slog.String("user_id", id))
	return u, nil
}

// Delete удаляет пользователя вместе с его данными.
// Строки файлов, уведомлений и форума снимает каскад БД в одной
// транзакции; blob'ы файлов чистятся best-effort после коммита.
func (s *UserService) Delete(ctx context.Context, id string) error {
	var files []*model.FileRecord

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		fileRepo := repository.NewFileRegistryRepository(tx)
		userRepo := repository.NewUserRepository(tx)

		var err error
		files, err = fileRepo.ListByUser(ctx, id)
		if err != nil {
			return fmt.Errorf("получение файлов пользователя: %w", err)
		}

		if err := userRepo.Delete(ctx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление пользователя: %w", err)
	}

	// Уведомления пользователя удалены каскадом — чистим его страницы в кэше
	s.cache.InvalidateUser(id)

	for _, f := range files {
		if err := s.blobs.Delete(ctx, id, f.FileHash); err != nil {
			s.logger.Warn("Не удалось удалить blob удалённого пользователя",
				slog.String("user_id", id),
				slog.String("file_hash", f.FileHash),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Пользователь удалён",
		slog.String("user_id", id),
		slog.Int("files", len(files)),
	)

	return nil
}
