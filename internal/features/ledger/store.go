// Package ledger — store.go задаёт контракт хранилища леджера.
// Каждая операция сервиса выполняется внутри одной транзакции WithTx:
// либо все записи применяются, либо ни одной.
package ledger

import (
	"context"
	"time"

	"serotonyl.ru/points-bot/internal/platform"
)

// Tx — операции внутри транзакции.
type Tx interface {
	// AddPoints меняет очки на delta (не ниже нуля), создаёт запись при первом начислении
	// и обновляет имя пользователя. Возвращает новый итог.
	AddPoints(ctx context.Context, user platform.User, delta int) (int, error)
	// DeleteEmptyUser удаляет запись с нулём очков и без решений.
	DeleteEmptyUser(ctx context.Context, userID string) error

	// ActiveSolution возвращает активное решение или nil.
	ActiveSolution(ctx context.Context, threadID, solverID string) (*Solution, error)
	// LastRevoked возвращает последнее отозванное решение или nil.
	LastRevoked(ctx context.Context, threadID, solverID string) (*Solution, error)
	InsertSolution(ctx context.Context, s *Solution) error
	MarkRevoked(ctx context.Context, id int64, revokingCommentID string, at time.Time) error
	ClearRevoked(ctx context.Context, id int64) error
	DeleteSolution(ctx context.Context, id int64) error
}

// Store — хранилище леджера.
type Store interface {
	// WithTx открывает транзакцию, коммитит при nil и откатывает при ошибке.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Points(ctx context.Context, userID string) (int, error)
	HasActiveSolution(ctx context.Context, threadID, userID string) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
	// PruneEmpty удаляет записи с нулём очков, возвращает число удалённых.
	PruneEmpty(ctx context.Context) (int64, error)
}
