// Package postgres управляет подключением к базе данных PostgreSQL.
// Используется пул соединений pgxpool; бот обрабатывает комментарии
// по одному, поэтому пул маленький (DB_MAX_CONNS).
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/config"
)

// NewPool создаёт новый пул соединений к PostgreSQL и проверяет, что база доступна.
//
// Пример:
//
//	pool, err := postgres.NewPool(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("база данных недоступна: %w", err)
	}

	log.WithFields(log.Fields{
		"host": cfg.DBHost,
		"db":   cfg.DBName,
	}).Info("Подключение к PostgreSQL установлено")
	return pool, nil
}

// Migration — одна версия схемы. Steps выполняются по порядку в одной транзакции
// вместе с записью версии в schema_migrations.
type Migration struct {
	Version int
	Name    string
	Steps   []string
}

// CurrentVersion возвращает последнюю применённую версию схемы (0 — пустая база).
func CurrentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`); err != nil {
		return 0, fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	var version int
	if err := pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	return version, nil
}

// Migrate определяет текущую версию схемы и применяет все миграции новее неё,
// строго по возрастанию версии. Любая ошибка останавливает процесс:
// наполовину обновлённой базой пользоваться нельзя.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) (int, error) {
	current, err := CurrentVersion(ctx, pool)
	if err != nil {
		return 0, err
	}

	// Порядок проверяем до первого изменения схемы
	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			return current, fmt.Errorf("миграции не упорядочены (%d после %d): %w",
				m.Version, last, common.ErrMigrationFailed)
		}
		last = m.Version
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := ExecMigration(ctx, pool, m); err != nil {
			return current, err
		}
		current = m.Version
		log.WithFields(log.Fields{
			"version": m.Version,
			"name":    m.Name,
		}).Info("Миграция применена")
	}

	return current, nil
}
