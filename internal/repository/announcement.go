package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
)

// AnnouncementRepository — интерфейс доступа к таблице announcements.
type AnnouncementRepository interface {
	// Create создаёт объявление.
	Create(ctx context.Context, a *model.Announcement) error
	// Get возвращает объявление по UUID.
	Get(ctx context.Context, id string) (*model.Announcement, error)
	// List возвращает страницу объявлений (по убыванию created_at)
	// и общее количество записей.
	List(ctx context.Context, limit, offset int) ([]*model.Announcement, int, error)
	// Delete удаляет объявление.
	Delete(ctx context.Context, id string) error
}

// announcementRepo — реализация AnnouncementRepository.
type announcementRepo struct {
	db DBTX
}

// NewAnnouncementRepository создаёт репозиторий объявлений.
func NewAnnouncementRepository(db DBTX) AnnouncementRepository {
	return &announcementRepo{db: db}
}

func (r *announcementRepo) Create(ctx context.Context, a *model.Announcement) error {
	query := `
		INSERT INTO announcements (id, title, content)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, a.ID, a.Title, a.Content).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания объявления: %w", err)
	}
	return nil
}

func (r *announcementRepo) Get(ctx context.Context, id string) (*model.Announcement, error) {
	query := `SELECT id, title, content, created_at FROM announcements WHERE id = $1`

	a := &model.Announcement{}
	err := r.db.QueryRow(ctx, query, id).Scan(&a.ID, &a.Title, &a.Content, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения объявления: %w", err)
	}
	return a, nil
}

func (r *announcementRepo) List(ctx context.Context, limit, offset int) ([]*model.Announcement, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта объявлений: %w", err)
	}

	query := `
		SELECT id, title, content, created_at
		FROM announcements
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения объявлений: %w", err)
	}
	defer rows.Close()

	var result []*model.Announcement
	for rows.Next() {
		a := &model.Announcement{}
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования объявления: %w", err)
		}
		result = append(result, a)
	}
	return result, total, rows.Err()
}

func (r *announcementRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления объявления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
