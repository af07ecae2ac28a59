package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
)

// ForumRepository — интерфейс доступа к таблицам threads, posts, thread_likes.
type ForumRepository interface {
	// CreateThread создаёт тему.
	CreateThread(ctx context.Context, th *model.Thread) error
	// GetThread возвращает тему с денормализованными счётчиками.
	// callerID может быть пустым — тогда CallerHasLiked всегда false.
	GetThread(ctx context.Context, id, callerID string) (*model.Thread, error)
	// ListThreads возвращает темы (по убыванию created_at).
	// search — опциональный поиск по заголовку и тексту (ILIKE).
	ListThreads(ctx context.Context, search, callerID string) ([]*model.Thread, error)
	// DeleteThread удаляет тему вместе с ответами и лайками (cascade).
	DeleteThread(ctx context.Context, id string) error
	// CreatePost создаёт ответ в теме.
	CreatePost(ctx context.Context, p *model.Post) error
	// GetPost возвращает ответ по UUID.
	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts возвращает ответы темы (по возрастанию created_at).
	ListPosts(ctx context.Context, threadID string) ([]*model.Post, error)
	// DeletePost удаляет ответ.
	DeletePost(ctx context.Context, id string) error
	// ToggleLike ставит или снимает лайк пользователя.
	// Возвращает итоговое количество лайков и liked-флаг.
	ToggleLike(ctx context.Context, threadID, userID string) (count int, liked bool, err error)
}

// threadSelect — выборка темы с именем автора и счётчиками.
const threadSelect = `
	SELECT t.id, t.user_id, u.name, t.title, t.content, t.category, t.created_at,
		(SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.id),
		(SELECT COUNT(*) FROM thread_likes l WHERE l.thread_id = t.id),
		EXISTS (SELECT 1 FROM thread_likes l WHERE l.thread_id = t.id AND l.user_id = $1)
	FROM threads t
	JOIN users u ON u.id = t.user_id`

// forumRepo — реализация ForumRepository.
type forumRepo struct {
	db DBTX
}

// NewForumRepository создаёт репозиторий форума.
func NewForumRepository(db DBTX) ForumRepository {
	return &forumRepo{db: db}
}

func (r *forumRepo) CreateThread(ctx context.Context, th *model.Thread) error {
	query := `
		INSERT INTO threads (id, user_id, title, content, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, th.ID, th.UserID, th.Title, th.Content, th.Category).Scan(&th.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания темы: %w", err)
	}
	return nil
}

// scanThread сканирует одну строку threadSelect.
func scanThread(row pgx.Row) (*model.Thread, error) {
	th := &model.Thread{}
	err := row.Scan(&th.ID, &th.UserID, &th.AuthorName, &th.Title, &th.Content, &th.Category,
		&th.CreatedAt, &th.PostCount, &th.LikeCount, &th.CallerHasLiked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения темы: %w", err)
	}
	return th, nil
}

func (r *forumRepo) GetThread(ctx context.Context, id, callerID string) (*model.Thread, error) {
	query := threadSelect + ` WHERE t.id = $2`
	return scanThread(r.db.QueryRow(ctx, query, nullableID(callerID), id))
}

func (r *forumRepo) ListThreads(ctx context.Context, search, callerID string) ([]*model.Thread, error) {
	query := threadSelect
	args := []any{nullableID(callerID)}

	if search != "" {
		query += ` WHERE t.title ILIKE $2 OR t.content ILIKE $2`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка тем: %w", err)
	}
	defer rows.Close()

	var result []*model.Thread
	for rows.Next() {
		th := &model.Thread{}
		if err := rows.Scan(&th.ID, &th.UserID, &th.AuthorName, &th.Title, &th.Content, &th.Category,
			&th.CreatedAt, &th.PostCount, &th.LikeCount, &th.CallerHasLiked); err != nil {
			return nil, fmt.Errorf("ошибка сканирования темы: %w", err)
		}
		result = append(result, th)
	}
	return result, rows.Err()
}

func (r *forumRepo) DeleteThread(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления темы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *forumRepo) CreatePost(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (id, thread_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.ThreadID, p.UserID, p.Content).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания ответа: %w", err)
	}
	return nil
}

func (r *forumRepo) GetPost(ctx context.Context, id string) (*model.Post, error) {
	query := `
		SELECT p.id, p.thread_id, p.user_id, u.name, p.content, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`

	p := &model.Post{}
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.ThreadID, &p.UserID, &p.AuthorName, &p.Content, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ответа: %w", err)
	}
	return p, nil
}

func (r *forumRepo) ListPosts(ctx context.Context, threadID string) ([]*model.Post, error) {
	query := `
		SELECT p.id, p.thread_id, p.user_id, u.name, p.content, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.thread_id = $1
		ORDER BY p.created_at`

	rows, err := r.db.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ответов: %w", err)
	}
	defer rows.Close()

	var result []*model.Post
	for rows.Next() {
		p := &model.Post{}
		if err := rows.Scan(&p.ID, &p.ThreadID, &p.UserID, &p.AuthorName, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ответа: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *forumRepo) DeletePost(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ответа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *forumRepo) ToggleLike(ctx context.Context, threadID, userID string) (int, bool, error) {
	// Сначала пытаемся снять лайк; если его не было — ставим.
	tag, err := r.db.Exec(ctx,
		`DELETE FROM thread_likes WHERE thread_id = $1 AND user_id = $2`,
		threadID, userID,
	)
	if err != nil {
		return 0, false, fmt.Errorf("ошибка снятия лайка: %w", err)
	}

	liked := false
	if tag.RowsAffected() == 0 {
		_, err = r.db.Exec(ctx,
			`INSERT INTO thread_likes (thread_id, user_id) VALUES ($1, $2)`,
			threadID, userID,
		)
		if err != nil {
			return 0, false, fmt.Errorf("ошибка установки лайка: %w", err)
		}
		liked = true
	}

	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM thread_likes WHERE thread_id = $1`, threadID).Scan(&count)
	if err != nil {
		return 0, false, fmt.Errorf("ошибка подсчёта лайков: %w", err)
	}
	return count, liked, nil
}

// nullableID возвращает NULL-совместимое значение для пустого UUID,
// чтобы сравнение в EXISTS не падало на приведении типов.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
