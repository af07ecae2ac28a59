// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — операция запрещена для данного пользователя.
	ErrForbidden = errors.New("операция запрещена")
	// ErrUploadState — недопустимый переход состояния загрузки.
	ErrUploadState = errors.New("недопустимый переход состояния загрузки")
	// ErrBlobUnavailable — blob-хранилище недоступно.
	ErrBlobUnavailable = errors.New("blob-хранилище недоступно")
)
