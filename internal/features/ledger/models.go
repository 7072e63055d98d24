// Package ledger реализует учёт очков за решённые вопросы.
// models.go описывает структуры для хранения очков и засчитанных решений.
package ledger

import (
	"time"

	"serotonyl.ru/points-bot/internal/platform"
)

// Entry хранит очки пользователя.
type Entry struct {
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	Points    int       `db:"points"` // Всегда >= 0
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Solution — засчитанное решение: одно очко, привязанное к доказательствам.
// Активно, пока RevokedByCommentID == nil.
type Solution struct {
	ID                    int64      `db:"id"`
	ThreadID              string     `db:"thread_id"`
	SolverID              string     `db:"solver_id"`
	SolvingCommentID      string     `db:"solving_comment_id"`
	ConfirmationCommentID string     `db:"confirmation_comment_id"`
	ConfirmerID           string     `db:"confirmer_id"`
	ByModerator           bool       `db:"by_moderator"`
	RevokedByCommentID    *string    `db:"revoked_by_comment_id"`
	RevokedAt             *time.Time `db:"revoked_at"`
	CreatedAt             time.Time  `db:"created_at"`
}

// Active — решение не отозвано.
func (s *Solution) Active() bool {
	return s.RevokedByCommentID == nil
}

// AwardParams — доказательства для начисления очка.
type AwardParams struct {
	ThreadID              string
	SolvingCommentID      string
	ConfirmationCommentID string
	Confirmer             platform.User
	ByModerator           bool
}
