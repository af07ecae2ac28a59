package model

import "time"

// Thread — тема форума.
// Хранится в таблице threads.
type Thread struct {
	// ID — UUID темы
	ID string
	// UserID — UUID автора (FK на users)
	UserID string
	// AuthorName — имя автора (денормализуется при выборке)
	AuthorName string
	// Title — заголовок темы
	Title string
	// Content — текст темы
	Content string
	// Category — категория темы
	Category string
	// PostCount — количество ответов (денормализуется при выборке)
	PostCount int
	// LikeCount — количество лайков (денормализуется при выборке)
	LikeCount int
	// CallerHasLiked — поставил ли лайк текущий пользователь
	CallerHasLiked bool
	// CreatedAt — время создания
	CreatedAt time.Time
}

// Post — ответ в теме форума.
// Хранится в таблице posts.
type Post struct {
	// ID — UUID ответа
	ID string
	// ThreadID — UUID темы (FK на threads)
	ThreadID string
	// UserID — UUID автора (FK на users)
	UserID string
	// AuthorName — имя автора (денормализуется при выборке)
	AuthorName string
	// Content — текст ответа
	Content string
	// CreatedAt — время создания
	CreatedAt time.Time
}
