package model

import "time"

// Announcement — объявление фирмы, публикуемое администратором.
// Хранится в таблице announcements.
type Announcement struct {
	// ID — UUID объявления
	ID string
	// Title — заголовок
	Title string
	// Content — текст объявления
	Content string
	// CreatedAt — время публикации
	CreatedAt time.Time
}
