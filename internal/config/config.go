// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
// Таблица уровней лежит отдельным YAML-файлом (LEVELS_FILE), см. features/levels.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/points-bot/internal/common"
)

// Драйверы хранилища леджера.
const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Discord (форум) ---
	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	DiscordGuildID  string `envconfig:"DISCORD_GUILD_ID" required:"true"`
	// Форум-канал, за которым следим (раздел форума)
	DiscordForumChannelID string `envconfig:"DISCORD_FORUM_CHANNEL_ID" required:"true"`
	// Роли модераторов через запятую; участники с правом Manage Messages — тоже модераторы
	DiscordModeratorRolesRaw string   `envconfig:"DISCORD_MODERATOR_ROLE_IDS"`
	DiscordModeratorRoles    []string `ignored:"true"`
	// Размер буфера событий между gateway и циклом обработки
	DiscordStreamBuffer int `envconfig:"DISCORD_STREAM_BUFFER" default:"256"`

	// --- Telegram (уведомления операторам, необязательно) ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `ignored:"true"` // заполним вручную

	// --- Database ---
	LedgerDriver string `envconfig:"LEDGER_DRIVER" default:"postgres"`
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"points_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"5"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	// --- Redis (защита от повторной обработки после переподключения, необязательно) ---
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	DedupTTL      time.Duration `envconfig:"DEDUP_TTL" default:"72h"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Правила распознавания решений ---
	SolvedPattern    string `envconfig:"SOLVED_PATTERN" default:"(?i)!solved\\b"`
	ModSolvedPattern string `envconfig:"MOD_SOLVED_PATTERN" default:"(?i)!approved?\\b"`
	ModRevokePattern string `envconfig:"MOD_REVOKE_PATTERN" default:"(?i)!unsolved\\b"`
	// Теги в заголовке темы через запятую, без скобок: "help,question" → [help], [question].
	// Пусто — следим за всеми темами.
	ThreadTagsRaw string   `envconfig:"THREAD_TAGS"`
	ThreadTags    []string `ignored:"true"`

	// --- Уровни ---
	LevelsFile string `envconfig:"LEVELS_FILE" default:"levels.yaml"`

	// --- Ответы бота ---
	ReplyMaintainer    string `envconfig:"REPLY_MAINTAINER" default:"the moderators"`
	ReplyFeedbackURL   string `envconfig:"REPLY_FEEDBACK_URL"`
	ReplyScoreboardURL string `envconfig:"REPLY_SCOREBOARD_URL"`
	ReplySourceURL     string `envconfig:"REPLY_SOURCE_URL"`
	// Каждые N очков сверх уровней рисуются звездой; 0 — выключено
	ReplyExcessPoints int `envconfig:"REPLY_EXCESS_POINTS" default:"100"`

	// --- Переподключение к потоку ---
	ReconnectMinDelay time.Duration `envconfig:"RECONNECT_MIN_DELAY" default:"1s"`
	ReconnectMaxDelay time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"60s"`

	// --- Фоновые задачи (cron) ---
	JobPruneSpec       string `envconfig:"JOB_PRUNE_SPEC" default:"0 4 * * *"`
	JobLeaderboardSpec string `envconfig:"JOB_LEADERBOARD_SPEC" default:"0 12 * * 1"`
	LeaderboardSize    int    `envconfig:"LEADERBOARD_SIZE" default:"10"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет значения, которые envconfig проверить не может.
func (c *Config) Validate() error {
	switch c.LedgerDriver {
	case LedgerPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для LEDGER_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case LedgerMemory:
	default:
		return fmt.Errorf("LEDGER_DRIVER должен быть %q или %q, а не %q", LedgerPostgres, LedgerMemory, c.LedgerDriver)
	}
	if c.DiscordStreamBuffer <= 0 {
		return fmt.Errorf("DISCORD_STREAM_BUFFER должен быть > 0")
	}
	for name, pattern := range map[string]string{
		"SOLVED_PATTERN":     c.SolvedPattern,
		"MOD_SOLVED_PATTERN": c.ModSolvedPattern,
		"MOD_REVOKE_PATTERN": c.ModRevokePattern,
	} {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%s не задан", name)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%s: некорректное регулярное выражение: %w", name, err)
		}
	}
	if c.ReplyExcessPoints < 0 {
		return fmt.Errorf("REPLY_EXCESS_POINTS должен быть >= 0")
	}
	if c.ReconnectMinDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectMinDelay {
		return fmt.Errorf("некорректные RECONNECT_MIN_DELAY/RECONNECT_MAX_DELAY")
	}
	if c.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_SIZE должен быть > 0")
	}
	if c.TelegramBotToken != "" && len(c.AdminIDs) == 0 {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN задан, но ADMIN_IDS пуст")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := common.ParseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids
	cfg.DiscordModeratorRoles = common.SplitCSV(cfg.DiscordModeratorRolesRaw)
	cfg.ThreadTags = normalizeTags(common.SplitCSV(cfg.ThreadTagsRaw))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeTags убирает скобки и приводит теги к нижнему регистру.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.Trim(strings.TrimSpace(t), "[]"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
