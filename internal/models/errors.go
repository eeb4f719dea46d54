package models

import "errors"

var (
	// ErrNotFound возвращается, если запись не найдена или не принадлежит пользователю.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrAlreadyExists возвращается при нарушении уникальности, например при повторной регистрации email.
var ErrAlreadyExists = errors.New("already exists")
