package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
)

// NotificationRepository — интерфейс CRUD для таблицы notifications.
type NotificationRepository interface {
	// Create создаёт уведомление.
	Create(ctx context.Context, n *model.Notification) error
	// ListByUser возвращает страницу уведомлений пользователя
	// (по убыванию created_at) и общее количество.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, int, error)
	// GetByID возвращает уведомление по идентификатору.
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	// MarkRead помечает уведомление прочитанным.
	// UPDATE ограничен владельцем: чужой userID не меняет запись,
	// ErrNotFound возвращается и для неизвестного id, и для чужого.
	MarkRead(ctx context.Context, id, userID string) (*model.Notification, error)
	// MarkAllRead помечает все непрочитанные уведомления пользователя.
	// Возвращает количество обновлённых записей.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	// Delete удаляет уведомление и возвращает user_id владельца.
	Delete(ctx context.Context, id string) (string, error)
}

const notificationColumns = `id, user_id, content, is_read, created_at`

// notificationRepo — реализация NotificationRepository.
type notificationRepo struct {
	db DBTX
}

// NewNotificationRepository создаёт репозиторий уведомлений.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, content, is_read)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, n.ID, n.UserID, n.Content, n.IsRead).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания уведомления: %w", err)
	}
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, int, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, notificationColumns)

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var result []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта уведомлений: %w", err)
	}

	return result, total, nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1`, notificationColumns)

	n := &model.Notification{}
	err := r.db.QueryRow(ctx, query, id).Scan(&n.ID, &n.UserID, &n.Content, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения уведомления: %w", err)
	}
	return n, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	query := fmt.Sprintf(`
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING %s`, notificationColumns)

	n := &model.Notification{}
	err := r.db.QueryRow(ctx, query, id, userID).Scan(&n.ID, &n.UserID, &n.Content, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка пометки уведомления прочитанным: %w", err)
	}
	return n, nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка пометки уведомлений прочитанными: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, `DELETE FROM notifications WHERE id = $1 RETURNING user_id`, id).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка удаления уведомления: %w", err)
	}
	return userID, nil
}
