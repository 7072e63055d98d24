// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт хранилище леджера и прогоняет миграции,
// подключается к Discord, собирает движок правил, ответы, уведомления и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/bot"
	"serotonyl.ru/points-bot/internal/config"
	"serotonyl.ru/points-bot/internal/db/postgres"
	"serotonyl.ru/points-bot/internal/dedup"
	"serotonyl.ru/points-bot/internal/features/ledger"
	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/features/reply"
	"serotonyl.ru/points-bot/internal/features/solutions"
	"serotonyl.ru/points-bot/internal/jobs"
	"serotonyl.ru/points-bot/internal/notify"
	"serotonyl.ru/points-bot/internal/platform/discord"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool // nil при LEDGER_DRIVER=memory
	Dedup     *dedup.Redis  // nil, если REDIS_ADDR не задан
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// === 1. Таблица уровней ===
	table, err := levels.LoadFile(cfg.LevelsFile)
	if err != nil {
		return nil, err
	}
	log.WithField("levels", len(table)).Info("Таблица уровней загружена")

	// === 2. Хранилище леджера ===
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	ledgerService := ledger.NewService(store)

	// === 3. Уведомления операторам ===
	var notifier bot.Notifier = notify.Noop{}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.AdminIDs, cfg.AppEnv == "development")
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = tg
	} else {
		log.Info("TELEGRAM_BOT_TOKEN не задан, уведомления операторам выключены")
	}

	// === 4. Защита от повторов ===
	opts := bot.Options{
		Levels:            table,
		ReconnectMinDelay: cfg.ReconnectMinDelay,
		ReconnectMaxDelay: cfg.ReconnectMaxDelay,
		Notifier:          notifier,
	}
	if cfg.RedisAddr != "" {
		d, err := dedup.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DedupTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Dedup = d
		opts.Dedup = d
	}

	// === 5. Площадка ===
	levelRoles := make([]string, 0, len(table))
	for _, l := range table {
		levelRoles = append(levelRoles, l.BadgeID)
	}
	client, err := discord.New(discord.Options{
		Token:          cfg.DiscordBotToken,
		GuildID:        cfg.DiscordGuildID,
		ForumChannelID: cfg.DiscordForumChannelID,
		ModeratorRoles: cfg.DiscordModeratorRoles,
		LevelRoles:     levelRoles,
		Buffer:         cfg.DiscordStreamBuffer,
		Debug:          cfg.AppEnv == "development",
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 6. Правила и ответы ===
	engine, err := solutions.NewEngine(client, solutions.Options{
		SolvedPattern:    cfg.SolvedPattern,
		ModSolvedPattern: cfg.ModSolvedPattern,
		ModRevokePattern: cfg.ModRevokePattern,
		ThreadTags:       cfg.ThreadTags,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	composer := reply.New(reply.Options{
		Maintainer:    cfg.ReplyMaintainer,
		FeedbackURL:   cfg.ReplyFeedbackURL,
		ScoreboardURL: cfg.ReplyScoreboardURL,
		SourceURL:     cfg.ReplySourceURL,
		ExcessPoints:  cfg.ReplyExcessPoints,
		Markup:        client.Markup(),
	})

	// === 7. Собираем бота ===
	a.Bot = bot.New(client, engine, ledgerService, composer, opts)

	// === 8. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(ledgerService, notifier, jobs.Options{
		Timezone:        cfg.AppTimezone,
		PruneSpec:       cfg.JobPruneSpec,
		LeaderboardSpec: cfg.JobLeaderboardSpec,
		LeaderboardSize: cfg.LeaderboardSize,
		Levels:          table,
	})

	return a, nil
}

// openStore выбирает хранилище по LEDGER_DRIVER. Для PostgreSQL сначала прогоняются миграции:
// без актуальной схемы бот не стартует.
func (a *App) openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	if cfg.LedgerDriver == config.LedgerMemory {
		log.Warn("LEDGER_DRIVER=memory: очки не сохранятся после перезапуска")
		return ledger.NewMemoryStore(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	a.DB = pool

	version, err := postgres.Migrate(ctx, pool, ledger.Migrations)
	if err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	log.WithField("version", version).Info("Схема БД актуальна")
	return ledger.NewPostgresStore(pool), nil
}

// Close освобождает соединения с БД и Redis.
func (a *App) Close() {
	if a.Dedup != nil {
		if err := a.Dedup.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
