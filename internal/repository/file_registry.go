package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
)

// FileRegistryRepository — интерфейс CRUD для таблицы files.
type FileRegistryRepository interface {
	// Register создаёт новую запись файла (резервирует хэш).
	Register(ctx context.Context, f *model.FileRecord) error
	// GetByHash возвращает файл по контрольной сумме.
	GetByHash(ctx context.Context, fileHash string) (*model.FileRecord, error)
	// GetByHashes возвращает записи для каждого из переданных хэшей.
	GetByHashes(ctx context.Context, fileHashes []string) ([]*model.FileRecord, error)
	// ListByUser возвращает файлы пользователя (по убыванию created_at).
	ListByUser(ctx context.Context, userID string) ([]*model.FileRecord, error)
	// UpdateReviewStatus обновляет статус проверки и комментарий.
	UpdateReviewStatus(ctx context.Context, fileHash, status string, notes *string) (*model.FileRecord, error)
	// UpdateUploadState переводит файл в новое состояние загрузки.
	// fromState задаёт ожидаемое текущее состояние (валидация перехода).
	UpdateUploadState(ctx context.Context, fileHash, fromState, toState string) (*model.FileRecord, error)
	// Delete удаляет запись реестра. Хэш после удаления можно
	// зарегистрировать заново.
	Delete(ctx context.Context, fileHash string) error
	// ListStaleReservations возвращает reserved-записи старше cutoff.
	ListStaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]*model.FileRecord, error)
	// DeleteReserved удаляет запись, только если она всё ещё reserved.
	// ErrNotFound означает, что запись ушла из reserved или удалена.
	DeleteReserved(ctx context.Context, fileHash string) error
}

const fileColumns = `id, user_id, file_hash, name, review_status, upload_state, review_notes, created_at, updated_at`

// fileRegistryRepo — реализация FileRegistryRepository.
type fileRegistryRepo struct {
	db DBTX
}

// NewFileRegistryRepository создаёт репозиторий файлового реестра.
func NewFileRegistryRepository(db DBTX) FileRegistryRepository {
	return &fileRegistryRepo{db: db}
}

func (r *fileRegistryRepo) Register(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, user_id, file_hash, name, review_status, upload_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.UserID, f.FileHash, f.Name, f.ReviewStatus, f.UploadState,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Уникальный индекс file_hash — единственный механизм
			// разрешения гонки двух конкурентных регистраций.
			return fmt.Errorf("%w: файл с таким хэшем уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

// scanFile сканирует одну строку files.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(&f.ID, &f.UserID, &f.FileHash, &f.Name,
		&f.ReviewStatus, &f.UploadState, &f.ReviewNotes, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// scanFiles сканирует набор строк files.
func scanFiles(rows pgx.Rows) ([]*model.FileRecord, error) {
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.FileHash, &f.Name,
			&f.ReviewStatus, &f.UploadState, &f.ReviewNotes, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRegistryRepo) GetByHash(ctx context.Context, fileHash string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_hash = $1`, fileColumns)
	return scanFile(r.db.QueryRow(ctx, query, fileHash))
}

func (r *fileRegistryRepo) GetByHashes(ctx context.Context, fileHashes []string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_hash = ANY($1)`, fileColumns)

	rows, err := r.db.Query(ctx, query, fileHashes)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов по хэшам: %w", err)
	}
	return scanFiles(rows)
}

func (r *fileRegistryRepo) ListByUser(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE user_id = $1 ORDER BY created_at DESC`, fileColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов пользователя: %w", err)
	}
	return scanFiles(rows)
}

func (r *fileRegistryRepo) UpdateReviewStatus(ctx context.Context, fileHash, status string, notes *string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		UPDATE files
		SET review_status = $2, review_notes = $3, updated_at = now()
		WHERE file_hash = $1
		RETURNING %s`, fileColumns)

	return scanFile(r.db.QueryRow(ctx, query, fileHash, status, notes))
}

func (r *fileRegistryRepo) UpdateUploadState(ctx context.Context, fileHash, fromState, toState string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		UPDATE files
		SET upload_state = $3, updated_at = now()
		WHERE file_hash = $1 AND upload_state = $2
		RETURNING %s`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, fileHash, fromState, toState))
	if err == ErrNotFound {
		// Либо хэш неизвестен, либо состояние не совпало —
		// различает сервисный слой повторным чтением.
		return nil, ErrNotFound
	}
	return f, err
}

func (r *fileRegistryRepo) Delete(ctx context.Context, fileHash string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE file_hash = $1`, fileHash)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRegistryRepo) ListStaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE upload_state = 'reserved' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, fileColumns)

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска зависших резерваций: %w", err)
	}
	return scanFiles(rows)
}

func (r *fileRegistryRepo) DeleteReserved(ctx context.Context, fileHash string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM files WHERE file_hash = $1 AND upload_state = 'reserved'`,
		fileHash,
	)
	if err != nil {
		return fmt.Errorf("ошибка удаления резервации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
