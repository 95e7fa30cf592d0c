package database

import "errors"

var (
	// ErrNotFound сущность не найдена
	ErrNotFound = errors.New("not found")

	// ErrConflict активная заявка уже существует с другим ключом
	ErrConflict = errors.New("conflict")

	// ErrInsufficientCapacity нет свободных мест на тур
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrInsufficientBalance недостаточно средств на кошельке
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState операция не применима к текущему статусу заявки
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation некорректные входные данные
	ErrValidation = errors.New("validation failed")
)
