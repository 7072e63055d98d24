// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночная чистка пустых записей леджера
// и еженедельная таблица лидеров для операторов.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/features/ledger"
	"serotonyl.ru/points-bot/internal/features/levels"
)

// Notifier — куда отправлять таблицу лидеров (см. internal/notify).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options — расписание в формате cron (5 полей). Пустая строка выключает задачу.
type Options struct {
	Timezone        string
	PruneSpec       string
	LeaderboardSpec string
	LeaderboardSize int
	Levels          []levels.Level
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	ledger   *ledger.Service
	notifier Notifier
	opts     Options
	loc      *time.Location
}

// NewScheduler создаёт планировщик задач в часовом поясе opts.Timezone.
func NewScheduler(ledgerService *ledger.Service, notifier Notifier, opts Options) *Scheduler {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить часовой пояс %q, используем UTC", opts.Timezone)
		loc = time.UTC
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 10
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		ledger:   ledgerService,
		notifier: notifier,
		opts:     opts,
		loc:      loc,
	}
}

// Start регистрирует задачи и запускает cron.
// Некорректное расписание — ошибка конфигурации, задачи не запускаются.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.opts.PruneSpec != "" {
		if _, err := s.cron.AddFunc(s.opts.PruneSpec, func() { s.Prune(ctx) }); err != nil {
			return fmt.Errorf("JOB_PRUNE_SPEC %q: %w", s.opts.PruneSpec, err)
		}
	}
	if s.opts.LeaderboardSpec != "" && s.notifier != nil {
		if _, err := s.cron.AddFunc(s.opts.LeaderboardSpec, func() { s.PostLeaderboard(ctx) }); err != nil {
			return fmt.Errorf("JOB_LEADERBOARD_SPEC %q: %w", s.opts.LeaderboardSpec, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"tz":          s.loc.String(),
		"prune":       s.opts.PruneSpec,
		"leaderboard": s.opts.LeaderboardSpec,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// Prune удаляет записи пользователей с нулём очков. История решений (в том числе
// отозванных) остаётся в таблице решений.
func (s *Scheduler) Prune(ctx context.Context) {
	n, err := s.ledger.PruneEmpty(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чистки леджера")
		return
	}
	log.WithField("deleted", n).Info("[CRON] Чистка леджера завершена")
}

// PostLeaderboard отправляет операторам таблицу лидеров.
func (s *Scheduler) PostLeaderboard(ctx context.Context) {
	entries, err := s.ledger.Leaderboard(ctx, s.opts.LeaderboardSize)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чтения таблицы лидеров")
		return
	}
	if err := s.notifier.Notify(ctx, FormatLeaderboard(entries, s.opts.Levels)); err != nil {
		log.WithError(err).Warn("[CRON] Не удалось отправить таблицу лидеров")
		return
	}
	log.WithField("entries", len(entries)).Info("[CRON] Таблица лидеров отправлена")
}

// FormatLeaderboard — текст таблицы лидеров с уровнями.
func FormatLeaderboard(entries []ledger.Entry, table []levels.Level) string {
	if len(entries) == 0 {
		return "Таблица лидеров пока пуста."
	}
	var sb strings.Builder
	sb.WriteString("Таблица лидеров:\n")
	for i, e := range entries {
		name := e.UserName
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(&sb, "%d. %s — %s", i+1, name, common.FormatPointsRu(int64(e.Points)))
		if info := levels.Resolve(e.Points, table); info.HasLevel() {
			fmt.Fprintf(&sb, " (%s)", info.Current.Name)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
