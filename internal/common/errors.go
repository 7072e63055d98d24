// Package common — errors.go определяет ошибки, которые используются во всех модулях бота.
// Эти ошибки позволяют оркестратору различать ожидаемые исходы
// (повторное начисление, нечего отзывать) и настоящие сбои.
package common

import "errors"

// Ошибки леджера (очки и решения)
var (
	// ErrAlreadySolved — у решателя уже есть активное решение в этой теме
	ErrAlreadySolved = errors.New("решение в этой теме уже засчитано")
	// ErrNoActiveSolution — нет активного решения, которое можно отозвать
	ErrNoActiveSolution = errors.New("нет активного решения для отзыва")
	// ErrNoRevokedSolution — нет отозванного решения, которое можно восстановить
	ErrNoRevokedSolution = errors.New("нет отозванного решения для восстановления")
	// ErrUnknownUser — пустой идентификатор пользователя
	ErrUnknownUser = errors.New("пользователь не определён")
)

// Ошибки платформы (форума)
var (
	// ErrReplyRejected — платформа отказалась публиковать ответ
	// (rate limit, удалённый родитель, нет прав). Запускает компенсацию в леджере.
	ErrReplyRejected = errors.New("платформа отклонила ответ")
	// ErrCommentNotFound — комментарий удалён или недоступен
	ErrCommentNotFound = errors.New("комментарий не найден")
	// ErrStreamClosed — поток комментариев закрыт, нужно переподключиться
	ErrStreamClosed = errors.New("поток комментариев закрыт")
)

// Ошибки конфигурации и хранилища
var (
	// ErrMigrationFailed — миграция схемы не применилась, работать дальше нельзя
	ErrMigrationFailed = errors.New("миграция схемы не применилась")
	// ErrInvalidLevels — таблица уровней некорректна
	ErrInvalidLevels = errors.New("некорректная таблица уровней")
)
