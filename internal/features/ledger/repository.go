// Package ledger — repository.go выполняет операции с таблицами ledger_users и solutions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/db/postgres"
	"serotonyl.ru/points-bot/internal/platform"
)

// pgUniqueViolation — код ошибки PostgreSQL при нарушении уникального индекса.
const pgUniqueViolation = "23505"

const solutionColumns = `
	id, thread_id, solver_id, solving_comment_id, confirmation_comment_id, confirmer_id,
	by_moderator, revoked_by_comment_id, revoked_at, created_at`

// PostgresStore — Store поверх pgxpool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище леджера в PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx открывает транзакцию БД и передаёт её в fn.
func (r *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

// Points возвращает очки пользователя; неизвестный пользователь — 0.
func (r *PostgresStore) Points(ctx context.Context, userID string) (int, error) {
	var points int
	err := r.db.QueryRow(ctx, `SELECT points FROM ledger_users WHERE user_id = $1`, userID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения очков %s: %w", userID, err)
	}
	return points, nil
}

// HasActiveSolution проверяет, засчитано ли уже решение пользователя в теме.
func (r *PostgresStore) HasActiveSolution(ctx context.Context, threadID, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM solutions
			WHERE thread_id = $1 AND solver_id = $2 AND revoked_by_comment_id IS NULL
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, threadID, userID).Scan(&exists)
	return exists, err
}

// Leaderboard возвращает топ пользователей по очкам.
func (r *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT user_id, user_name, points, created_at, updated_at
		FROM ledger_users
		WHERE points > 0
		ORDER BY points DESC, user_id
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.Points, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneEmpty удаляет записи с нулём очков.
func (r *PostgresStore) PruneEmpty(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ledger_users WHERE points = 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// pgTx — операции леджера внутри транзакции БД.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) AddPoints(ctx context.Context, user platform.User, delta int) (int, error) {
	query := `
		INSERT INTO ledger_users (user_id, user_name, points)
		VALUES ($1, $2, GREATEST($3, 0))
		ON CONFLICT (user_id) DO UPDATE
		SET points = GREATEST(ledger_users.points + $3, 0),
		    user_name = COALESCE(NULLIF(EXCLUDED.user_name, ''), ledger_users.user_name),
		    updated_at = NOW()
		RETURNING points
	`
	var total int
	if err := t.tx.QueryRow(ctx, query, user.ID, user.Name, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка изменения очков %s: %w", user.ID, err)
	}
	return total, nil
}

func (t *pgTx) DeleteEmptyUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM ledger_users u
		WHERE u.user_id = $1 AND u.points = 0
		  AND NOT EXISTS (SELECT 1 FROM solutions s WHERE s.solver_id = u.user_id)
	`
	_, err := t.tx.Exec(ctx, query, userID)
	return err
}

func (t *pgTx) ActiveSolution(ctx context.Context, threadID, solverID string) (*Solution, error) {
	query := `SELECT ` + solutionColumns + `
		FROM solutions
		WHERE thread_id = $1 AND solver_id = $2 AND revoked_by_comment_id IS NULL
		FOR UPDATE
	`
	return scanSolution(t.tx.QueryRow(ctx, query, threadID, solverID))
}

func (t *pgTx) LastRevoked(ctx context.Context, threadID, solverID string) (*Solution, error) {
	query := `SELECT ` + solutionColumns + `
		FROM solutions
		WHERE thread_id = $1 AND solver_id = $2 AND revoked_by_comment_id IS NOT NULL
		ORDER BY revoked_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`
	return scanSolution(t.tx.QueryRow(ctx, query, threadID, solverID))
}

func (t *pgTx) InsertSolution(ctx context.Context, s *Solution) error {
	query := `
		INSERT INTO solutions (thread_id, solver_id, solving_comment_id,
		                       confirmation_comment_id, confirmer_id, by_moderator)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := t.tx.QueryRow(ctx, query,
		s.ThreadID, s.SolverID, s.SolvingCommentID,
		s.ConfirmationCommentID, s.ConfirmerID, s.ByModerator,
	).Scan(&s.ID, &s.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return common.ErrAlreadySolved
	}
	return err
}

func (t *pgTx) MarkRevoked(ctx context.Context, id int64, revokingCommentID string, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE solutions SET revoked_by_comment_id = $2, revoked_at = $3 WHERE id = $1`,
		id, revokingCommentID, at,
	)
	return err
}

func (t *pgTx) ClearRevoked(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE solutions SET revoked_by_comment_id = NULL, revoked_at = NULL WHERE id = $1`, id,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return common.ErrAlreadySolved
	}
	return err
}

func (t *pgTx) DeleteSolution(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM solutions WHERE id = $1`, id)
	return err
}

// scanSolution читает одну строку solutions; нет строки — nil без ошибки.
func scanSolution(row pgx.Row) (*Solution, error) {
	var s Solution
	err := row.Scan(
		&s.ID, &s.ThreadID, &s.SolverID, &s.SolvingCommentID, &s.ConfirmationCommentID,
		&s.ConfirmerID, &s.ByModerator, &s.RevokedByCommentID, &s.RevokedAt, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
