// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит транзакционные обёртки.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/points-bot/internal/common"
)

// ExecMigration применяет одну миграцию в транзакции.
// Если любой шаг упадёт — транзакция откатится, версия не запишется.
func ExecMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		// Проверяем, не была ли эта миграция уже применена
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки миграции: %w", err)
		}
		if exists {
			return nil
		}

		for i, step := range m.Steps {
			if _, err := tx.Exec(ctx, step); err != nil {
				return fmt.Errorf("шаг %d: %w", i+1, err)
			}
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", m.Version,
		); err != nil {
			return fmt.Errorf("ошибка записи версии миграции: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("миграция %d (%s): %v: %w", m.Version, m.Name, err, common.ErrMigrationFailed)
	}
	return nil
}

// WithTx выполняет fn в транзакции: коммит при nil, откат при ошибке или панике.
// Соединение возвращается в пул в любом случае.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// После Commit откат ничего не делает
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}
