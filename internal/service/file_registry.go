// file_registry.go — сервис файлового реестра.
// Регистрация файлов по хэшу содержимого, двухфазная загрузка
// (reserved → uploaded → confirmed), рецензирование с уведомлением владельца.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturkryukov/clientportal/internal/blobstore"
	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/repository"
)

// FileRegistryService — сервис файлового реестра.
type FileRegistryService struct {
	fileRepo repository.FileRegistryRepository
	userRepo repository.UserRepository
	notifier *NotificationService
	blobs    blobstore.Store
	logger   *slog.Logger
}

// NewFileRegistryService создаёт сервис файлового реестра.
func NewFileRegistryService(
	fileRepo repository.FileRegistryRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
	blobs blobstore.Store,
	logger *slog.Logger,
) *FileRegistryService {
	return &FileRegistryService{
		fileRepo: fileRepo,
		userRepo: userRepo,
		notifier: notifier,
		blobs:    blobs,
		logger:   logger.With(slog.String("component", "file_registry_service")),
	}
}

// RegisterResult — результат резервирования файла.
type RegisterResult struct {
	File      *model.FileRecord
	UploadURL string
	ExpiresAt time.Time
}

// Register резервирует хэш содержимого за пользователем и выписывает
// presigned URL для загрузки. Уникальность хэша глобальная: одинаковое
// содержимое не регистрируется дважды, даже разными пользователями.
// Гонку двух одновременных регистраций разрешает unique-индекс в БД.
func (s *FileRegistryService) Register(ctx context.Context, userID, fileHash, fileName string) (*RegisterResult, error) {
	if userID == "" || fileHash == "" || fileName == "" {
		return nil, fmt.Errorf("%w: user_id, file_hash и file_name обязательны", ErrValidation)
	}
	// Некорректный UUID не должен доходить до SQL-каста
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%w: user_id должен быть корректным UUID", ErrValidation)
	}

	// Проверяем существование пользователя
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь '%s' не найден", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("проверка пользователя: %w", err)
	}

	f := &model.FileRecord{
		ID:           uuid.New().String(),
		UserID:       userID,
		FileHash:     fileHash,
		Name:         fileName,
		ReviewStatus: model.StatusPending,
		UploadState:  model.UploadStateReserved,
	}

	if err := s.fileRepo.Register(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: файл с таким содержимым уже зарегистрирован", ErrConflict)
		}
		return nil, fmt.Errorf("регистрация файла: %w", err)
	}

	url, expiresAt, err := s.blobs.PresignPut(ctx, userID, fileHash)
	if err != nil {
		// Резервация без URL бесполезна: снимаем её, иначе хэш
		// останется занят до срабатывания reconciler.
		if delErr := s.fileRepo.Delete(ctx, fileHash); delErr != nil {
			s.logger.Error("Не удалось снять резервацию после сбоя presign",
				slog.String("file_hash", fileHash),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrBlobUnavailable, err)
	}

	s.logger.Info("Файл зарегистрирован",
		slog.String("file_hash", fileHash),
		slog.String("user_id", userID),
		slog.String("name", fileName),
	)

	return &RegisterResult{File: f, UploadURL: url, ExpiresAt: expiresAt}, nil
}

// advanceUploadState переводит файл из fromState в toState.
// Различает отсутствующий файл (ErrNotFound) и недопустимый переход
// (ErrUploadState): repository возвращает ErrNotFound в обоих случаях.
func (s *FileRegistryService) advanceUploadState(ctx context.Context, fileHash, fromState, toState string) (*model.FileRecord, error) {
	f, err := s.fileRepo.UpdateUploadState(ctx, fileHash, fromState, toState)
	if err == nil {
		s.logger.Info("Состояние загрузки обновлено",
			slog.String("file_hash", fileHash),
			slog.String("upload_state", toState),
		)
		return f, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("обновление состояния загрузки: %w", err)
	}

	existing, getErr := s.fileRepo.GetByHash(ctx, fileHash)
	if getErr != nil {
		if errors.Is(getErr, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", getErr)
	}
	return nil, fmt.Errorf("%w: %s → %s невозможен из состояния %s",
		ErrUploadState, fromState, toState, existing.UploadState)
}

// MarkUploaded — callback клиента после успешного PUT в blob-хранилище.
func (s *FileRegistryService) MarkUploaded(ctx context.Context, fileHash string) (*model.FileRecord, error) {
	return s.advanceUploadState(ctx, fileHash, model.UploadStateReserved, model.UploadStateUploaded)
}

// Confirm завершает двухфазную загрузку.
func (s *FileRegistryService) Confirm(ctx context.Context, fileHash string) (*model.FileRecord, error) {
	return s.advanceUploadState(ctx, fileHash, model.UploadStateUploaded, model.UploadStateConfirmed)
}

// Exists проверяет, зарегистрирован ли хэш содержимого.
func (s *FileRegistryService) Exists(ctx context.Context, fileHash string) (bool, error) {
	if fileHash == "" {
		return false, fmt.Errorf("%w: file_hash обязателен", ErrValidation)
	}
	_, err := s.fileRepo.GetByHash(ctx, fileHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("проверка существования файла: %w", err)
	}
	return true, nil
}

// BatchCheck возвращает найденные записи для набора хэшей.
// Неизвестные хэши просто отсутствуют в результате.
func (s *FileRegistryService) BatchCheck(ctx context.Context, fileHashes []string) ([]*model.FileRecord, error) {
	if len(fileHashes) == 0 {
		return nil, fmt.Errorf("%w: требуется хотя бы один хэш", ErrValidation)
	}
	files, err := s.fileRepo.GetByHashes(ctx, fileHashes)
	if err != nil {
		return nil, fmt.Errorf("пакетная проверка хэшей: %w", err)
	}
	return files, nil
}

// ListByUser возвращает файлы пользователя (новые первыми).
func (s *FileRegistryService) ListByUser(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	files, err := s.fileRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение файлов пользователя: %w", err)
	}
	return files, nil
}

// ReviewResult — результат обновления статуса рецензирования.
// OrphanedOwner: статус обновлён, но уведомить владельца не удалось.
type ReviewResult struct {
	File          *model.FileRecord
	OrphanedOwner bool
}

// UpdateReviewStatus обновляет статус рецензирования файла.
// Переход в reviewed создаёт уведомление владельцу; повторная установка
// reviewed уведомление не дублирует. Если владельца уведомить не удалось,
// статус всё равно обновляется, а результат несёт OrphanedOwner.
func (s *FileRegistryService) UpdateReviewStatus(ctx context.Context, fileHash, status string, notes *string) (*ReviewResult, error) {
	if fileHash == "" || status == "" {
		return nil, fmt.Errorf("%w: file_hash и status обязательны", ErrValidation)
	}
	if !model.ValidReviewStatus(status) {
		return nil, fmt.Errorf("%w: недопустимый статус '%s'", ErrValidation, status)
	}

	prev, err := s.fileRepo.GetByHash(ctx, fileHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	f, err := s.fileRepo.UpdateReviewStatus(ctx, fileHash, status, notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление статуса: %w", err)
	}

	result := &ReviewResult{File: f}

	if status == model.StatusReviewed && prev.ReviewStatus != model.StatusReviewed {
		result.OrphanedOwner = !s.notifyOwner(ctx, f, notes)
	}

	s.logger.Info("Статус рецензирования обновлён",
		slog.String("file_hash", fileHash),
		slog.String("review_status", status),
		slog.Bool("orphaned_owner", result.OrphanedOwner),
	)

	return result, nil
}

// notifyOwner уведомляет владельца файла о завершении рецензирования.
// Возвращает false, если владелец не найден или уведомление не создано.
func (s *FileRegistryService) notifyOwner(ctx context.Context, f *model.FileRecord, notes *string) bool {
	owner, err := s.userRepo.GetByID(ctx, f.UserID)
	if err != nil {
		s.logger.Warn("Владелец файла не найден, уведомление не отправлено",
			slog.String("file_hash", f.FileHash),
			slog.String("user_id", f.UserID),
		)
		return false
	}

	content := fmt.Sprintf("Your document %q has been reviewed.", f.Name)
	if notes != nil && *notes != "" {
		content = fmt.Sprintf("%s Notes: %s", content, *notes)
	}

	if err := s.notifier.Notify(ctx, owner.ID, content); err != nil {
		s.logger.Error("Не удалось создать уведомление о рецензировании",
			slog.String("file_hash", f.FileHash),
			slog.String("user_id", owner.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Delete удаляет файл из реестра, затем best-effort удаляет blob.
// Сбой удаления blob не откатывает запись: реестр остаётся источником
// истины, осиротевший объект вычищается вручную.
func (s *FileRegistryService) Delete(ctx context.Context, fileHash string) error {
	f, err := s.fileRepo.GetByHash(ctx, fileHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение файла: %w", err)
	}

	if err := s.fileRepo.Delete(ctx, fileHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление файла: %w", err)
	}

	if err := s.blobs.Delete(ctx, f.UserID, fileHash); err != nil {
		s.logger.Warn("Не удалось удалить blob, объект осиротел",
			slog.String("file_hash", fileHash),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Файл удалён из реестра",
		slog.String("file_hash", fileHash),
		slog.String("user_id", f.UserID),
	)

	return nil
}
