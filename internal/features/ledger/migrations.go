// Package ledger — migrations.go: версии схемы леджера.
// SQL встроен в код для упрощения деплоя; применяет postgres.Migrate.
package ledger

import "serotonyl.ru/points-bot/internal/db/postgres"

// Migrations — все версии схемы по порядку. Новые версии только дописываются в конец.
var Migrations = []postgres.Migration{
	{Version: 1, Name: "ledger_users", Steps: []string{migration001Users, migration001UsersIndex}},
	{Version: 2, Name: "solutions", Steps: []string{migration002Solutions}},
	{Version: 3, Name: "solutions_revocation", Steps: []string{
		migration003RevokeColumns,
		migration003ActiveIndex,
	}},
	{Version: 4, Name: "legacy_points_import", Steps: []string{migration004LegacyImport}},
	{Version: 5, Name: "legacy_redditor_import", Steps: []string{migration005LegacyRedditorImport}},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS ledger_users (
    user_id TEXT PRIMARY KEY,
    user_name TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
)`

var migration001UsersIndex = `
CREATE INDEX IF NOT EXISTS idx_ledger_users_points ON ledger_users(points DESC)`

var migration002Solutions = `
CREATE TABLE IF NOT EXISTS solutions (
    id BIGSERIAL PRIMARY KEY,
    thread_id TEXT NOT NULL,
    solver_id TEXT NOT NULL,
    solving_comment_id TEXT NOT NULL,
    confirmation_comment_id TEXT NOT NULL,
    confirmer_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_solutions_thread_solver ON solutions(thread_id, solver_id)`

var migration003RevokeColumns = `
ALTER TABLE solutions
    ADD COLUMN IF NOT EXISTS by_moderator BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS revoked_by_comment_id TEXT,
    ADD COLUMN IF NOT EXISTS revoked_at TIMESTAMP`

// Не больше одного активного решения на пару (тема, автор решения).
var migration003ActiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS uq_solutions_active
    ON solutions(thread_id, solver_id)
    WHERE revoked_by_comment_id IS NULL`

// Старый формат хранил только (id, name, points) в redditor_points.
// Очки переносим как есть, старую таблицу оставляем под другим именем.
var migration004LegacyImport = `
DO $$
BEGIN
    IF to_regclass('redditor_points') IS NOT NULL THEN
        INSERT INTO ledger_users (user_id, user_name, points)
        SELECT id::TEXT, COALESCE(name, ''), GREATEST(COALESCE(points, 0), 0)
        FROM redditor_points
        ON CONFLICT (user_id) DO NOTHING;
        ALTER TABLE redditor_points RENAME TO redditor_points_legacy;
    END IF;
END
$$`

// Формат 0.2: redditor(id, name, points_modifier) + solved_submission, где solver
// ссылается на rowid SQLite. Очки = число решений + points_modifier; пользователь
// без решений показывался с нулём, модификатор без решений не учитывался.
// rowid должен быть выгружен из SQLite отдельной колонкой, иначе решения не связать
// с пользователями, и миграция падает, не трогая данные.
var migration005LegacyRedditorImport = `
DO $$
BEGIN
    IF to_regclass('redditor') IS NOT NULL THEN
        IF NOT EXISTS (
            SELECT 1 FROM pg_attribute
            WHERE attrelid = to_regclass('redditor') AND attname = 'rowid' AND NOT attisdropped
        ) THEN
            RAISE EXCEPTION 'redditor: нет колонки rowid, решения не связать с пользователями';
        END IF;
        IF to_regclass('solved_submission') IS NULL THEN
            RAISE EXCEPTION 'redditor есть, а solved_submission нет: очки не восстановить';
        END IF;

        INSERT INTO ledger_users (user_id, user_name, points)
        SELECT r.id::TEXT, COALESCE(r.name, ''),
               CASE WHEN COUNT(s.solver) = 0 THEN 0
                    ELSE GREATEST(COUNT(s.solver) + COALESCE(r.points_modifier, 0), 0)
               END::INTEGER
        FROM redditor r
        LEFT JOIN solved_submission s ON s.solver = r.rowid
        GROUP BY r.rowid, r.id, r.name, r.points_modifier
        ON CONFLICT (user_id) DO NOTHING;

        ALTER TABLE redditor RENAME TO redditor_legacy;
        ALTER TABLE solved_submission RENAME TO solved_submission_legacy;
    END IF;
END
$$`
