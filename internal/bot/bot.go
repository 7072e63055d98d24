// Package bot содержит главный цикл бота: читает поток комментариев,
// классифицирует каждый комментарий, меняет очки в леджере, отвечает в тему
// и обновляет бейдж. Если ответ не опубликовался, изменение в леджере откатывается.
//
// Комментарии обрабатываются строго по одному в порядке поступления:
// от порядка зависит, какое подтверждение в теме считается первым.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/bot/filters"
	"serotonyl.ru/points-bot/internal/bot/middleware"
	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/features/ledger"
	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/features/reply"
	"serotonyl.ru/points-bot/internal/features/solutions"
	"serotonyl.ru/points-bot/internal/platform"
)

// Сколько ждать компенсацию и уведомление, если основной ctx уже отменён.
const detachedTimeout = 15 * time.Second

// Dedup — маркеры обработанных комментариев (см. internal/dedup).
type Dedup interface {
	Seen(ctx context.Context, commentID string) (bool, error)
	Forget(ctx context.Context, commentID string) error
}

// Notifier — уведомления операторам (см. internal/notify).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options — настройки цикла.
type Options struct {
	Levels []levels.Level

	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	// Необязательные зависимости; nil — выключено.
	Dedup    Dedup
	Notifier Notifier
}

// Bot — оркестратор обработки комментариев.
type Bot struct {
	client   platform.Client
	engine   *solutions.Engine
	ledger   *ledger.Service
	composer *reply.Composer
	filter   *filters.CommentFilter

	levels   []levels.Level
	dedup    Dedup
	notifier Notifier
	alerts   *middleware.RateLimiter

	minDelay time.Duration
	maxDelay time.Duration
}

// New создаёт бота со всеми зависимостями.
func New(
	client platform.Client,
	engine *solutions.Engine,
	ledgerService *ledger.Service,
	composer *reply.Composer,
	opts Options,
) *Bot {
	minDelay, maxDelay := opts.ReconnectMinDelay, opts.ReconnectMaxDelay
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return &Bot{
		client:   client,
		engine:   engine,
		ledger:   ledgerService,
		composer: composer,
		filter:   filters.NewCommentFilter(client.Me()),
		levels:   opts.Levels,
		dedup:    opts.Dedup,
		notifier: opts.Notifier,
		// не больше 3 уведомлений на тему в час
		alerts:   middleware.NewRateLimiter(3, time.Hour),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Start читает поток комментариев до отмены ctx.
// Разрыв потока — не ошибка: ждём и переподключаемся, задержка растёт
// от ReconnectMinDelay вдвое до ReconnectMaxDelay и сбрасывается,
// если соединение успело поработать.
func (b *Bot) Start(ctx context.Context) {
	log.WithFields(log.Fields{
		"me":     b.client.Me().Name,
		"levels": len(b.levels),
		"tags":   b.engine.Tags(),
	}).Info("Бот запущен и ожидает комментарии...")

	delay := b.minDelay
	for {
		healthy, err := b.runStream(ctx)
		if ctx.Err() != nil {
			log.Info("Бот останавливается (ctx done)...")
			return
		}
		if healthy {
			delay = b.minDelay
		}

		log.WithError(err).WithField("retry_in", delay.String()).
			Warn("Поток комментариев прерван, переподключаемся")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Бот останавливается (ctx done)...")
			return
		case <-timer.C:
		}

		delay = b.nextDelay(delay)
	}
}

// nextDelay удваивает задержку, но не выше maxDelay.
func (b *Bot) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > b.maxDelay {
		d = b.maxDelay
	}
	return d
}

// runStream открывает поток и обрабатывает его до ошибки.
// healthy — поток успел отдать хотя бы один опрос.
func (b *Bot) runStream(ctx context.Context) (healthy bool, err error) {
	stream, err := b.client.Connect(ctx)
	if err != nil {
		return false, fmt.Errorf("подключение к потоку: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			log.WithError(cerr).Debug("Ошибка закрытия потока")
		}
	}()

	for {
		c, err := stream.Next(ctx)
		if err != nil {
			return healthy, err
		}
		healthy = true
		if c == nil {
			// пустой опрос
			continue
		}
		b.HandleComment(ctx, *c)
	}
}

// Result — что случилось с комментарием (для логов и тестов).
type Result struct {
	Outcome solutions.Outcome
	// Skip — почему обработка остановилась без изменений в леджере.
	Skip        string
	Points      int
	Replied     bool
	Compensated bool
	BadgeSet    bool
}

// Причины остановки, которые выставляет сам оркестратор.
const (
	SkipFiltered      = "filtered"
	SkipDuplicate     = "duplicate"
	SkipAlreadySolved = "already_solved"
	SkipNoSolution    = "no_active_solution"
	SkipError         = "error"
)

// HandleComment проводит один комментарий через все шаги:
// фильтр → классификация → леджер → ответ → бейдж.
// Ошибки не возвращаются: всё логируется с полями комментария, цикл продолжается.
func (b *Bot) HandleComment(ctx context.Context, c platform.Comment) (res Result) {
	logger := middleware.CommentLogger(&c)
	defer middleware.RecoverFromPanic(logger)
	ctx = common.WithLogger(ctx, logger)

	middleware.LogComment(logger, &c)

	if !b.filter.Check(&c, logger) {
		res.Skip = SkipFiltered
		return res
	}

	if b.dedup != nil {
		seen, err := b.dedup.Seen(ctx, c.ID)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Проверка повтора не удалась, обрабатываем как новый")
		case seen:
			logger.Debug("Комментарий уже обработан ранее")
			res.Skip = SkipDuplicate
			return res
		}
	}

	d, err := b.engine.Classify(ctx, c)
	if err != nil {
		logger.WithError(err).Error("Не удалось классифицировать комментарий")
		b.forget(ctx, logger, c.ID)
		res.Skip = SkipError
		return res
	}
	res.Outcome = d.Outcome

	logger = logger.WithFields(log.Fields{
		"outcome":   d.Outcome.String(),
		"solver_id": d.Solver.ID,
	})
	ctx = common.WithLogger(ctx, logger)

	switch d.Outcome {
	case solutions.Award:
		b.award(ctx, logger, d, &res)
	case solutions.Revoke:
		b.revoke(ctx, logger, d, &res)
	default:
		res.Skip = d.Reason
		logger.WithField("reason", d.Reason).Debug("Комментарий пропущен")
	}
	return res
}

func (b *Bot) award(ctx context.Context, logger *log.Entry, d solutions.Decision, res *Result) {
	threadID := d.Comment.ThreadID

	solved, err := b.ledger.HasActiveSolution(ctx, threadID, d.Solver.ID)
	if err != nil {
		logger.WithError(err).Error("Не удалось проверить леджер")
		b.forget(ctx, logger, d.Comment.ID)
		res.Skip = SkipError
		return
	}
	if solved {
		logger.Debug("Решение в этой теме уже засчитано")
		res.Skip = SkipAlreadySolved
		return
	}

	points, err := b.ledger.Award(ctx, d.Solver, ledger.AwardParams{
		ThreadID:              threadID,
		SolvingCommentID:      d.Solution.ID,
		ConfirmationCommentID: d.Comment.ID,
		Confirmer:             d.Confirmer,
		ByModerator:           d.ByModerator,
	})
	if errors.Is(err, common.ErrAlreadySolved) {
		logger.Debug("Решение в этой теме уже засчитано")
		res.Skip = SkipAlreadySolved
		return
	}
	if err != nil {
		logger.WithError(err).Error("Не удалось начислить очко")
		b.forget(ctx, logger, d.Comment.ID)
		res.Skip = SkipError
		return
	}
	res.Points = points
	logger.WithFields(log.Fields{
		"points":       points,
		"by_moderator": d.ByModerator,
	}).Info("Очко начислено")

	info := levels.Resolve(points, b.levels)
	text := b.composer.Compose(d.Solver, points, info)

	if err := b.client.Reply(ctx, d.Comment, text); err != nil {
		replyFailed(logger, err)
		cctx, cancel := detached(ctx)
		defer cancel()
		if cerr := b.ledger.CompensateAwardFailure(cctx, d.Solver, threadID); cerr != nil {
			logger.WithError(cerr).Error("Откат начисления не удался, леджер нужно проверить вручную")
			b.alert(ctx, threadID, fmt.Sprintf(
				"Откат начисления не удался: тема %s, комментарий %s, пользователь %s (%s): %v",
				threadID, d.Comment.ID, d.Solver.Name, d.Solver.ID, cerr))
			return
		}
		res.Compensated = true
		logger.Warn("Начисление откачено")
		b.alert(ctx, threadID, fmt.Sprintf(
			"Ответ не опубликован, очко для %s откачено (тема %s, комментарий %s): %v",
			d.Solver.Name, threadID, d.Comment.ID, err))
		return
	}
	res.Replied = true
	logger.WithField("reply", common.Truncate(text, 80)).Debug("Ответ опубликован")

	if info.ReachedExactly(points) {
		res.BadgeSet = b.updateBadge(ctx, logger, d.Solver, *info.Current)
	}
}

func (b *Bot) revoke(ctx context.Context, logger *log.Entry, d solutions.Decision, res *Result) {
	threadID := d.Comment.ThreadID

	points, err := b.ledger.Revoke(ctx, d.Solver, threadID, d.Comment.ID)
	if errors.Is(err, common.ErrNoActiveSolution) {
		logger.Debug("Нечего отзывать")
		res.Skip = SkipNoSolution
		return
	}
	if err != nil {
		logger.WithError(err).Error("Не удалось отозвать решение")
		b.forget(ctx, logger, d.Comment.ID)
		res.Skip = SkipError
		return
	}
	res.Points = points
	logger.WithField("points", points).Info("Решение отозвано")

	info := levels.Resolve(points, b.levels)
	text := b.composer.ComposeRevoked(d.Solver, points, info)

	if err := b.client.Reply(ctx, d.Comment, text); err != nil {
		replyFailed(logger, err)
		cctx, cancel := detached(ctx)
		defer cancel()
		if cerr := b.ledger.CompensateRevokeFailure(cctx, d.Solver, threadID); cerr != nil {
			logger.WithError(cerr).Error("Откат отзыва не удался, леджер нужно проверить вручную")
			b.alert(ctx, threadID, fmt.Sprintf(
				"Откат отзыва не удался: тема %s, комментарий %s, пользователь %s (%s): %v",
				threadID, d.Comment.ID, d.Solver.Name, d.Solver.ID, cerr))
			return
		}
		res.Compensated = true
		logger.Warn("Отзыв откачен")
		b.alert(ctx, threadID, fmt.Sprintf(
			"Ответ не опубликован, отзыв очка у %s откачен (тема %s, комментарий %s): %v",
			d.Solver.Name, threadID, d.Comment.ID, err))
		return
	}
	res.Replied = true
}

func replyFailed(logger *log.Entry, err error) {
	entry := logger.WithError(err)
	if errors.Is(err, common.ErrReplyRejected) {
		entry.Error("Площадка отклонила ответ, откатываем изменение")
	} else {
		entry.Error("Ответ не отправлен, откатываем изменение")
	}
}

// updateBadge выставляет бейдж уровня. Модераторам бейдж не меняем.
// Ошибки только логируются: очко уже засчитано.
func (b *Bot) updateBadge(ctx context.Context, logger *log.Entry, user platform.User, lvl levels.Level) bool {
	logger = logger.WithFields(log.Fields{
		"level":    lvl.Name,
		"badge_id": lvl.BadgeID,
	})
	logger.Info("Пользователь достиг уровня")

	isMod, err := b.client.IsModerator(ctx, user)
	if err != nil {
		logger.WithError(err).Warn("Не удалось проверить модератора, бейдж не меняем")
		return false
	}
	if isMod {
		logger.Info("Решатель — модератор, бейдж не меняем")
		return false
	}

	if err := b.client.SetBadge(ctx, user, lvl.Name, lvl.BadgeID); err != nil {
		logger.WithError(err).Warn("Не удалось выставить бейдж")
		return false
	}
	logger.Info("Бейдж обновлён")
	return true
}

// forget снимает маркер повтора, чтобы комментарий обработался при повторной доставке.
func (b *Bot) forget(ctx context.Context, logger *log.Entry, commentID string) {
	if b.dedup == nil {
		return
	}
	cctx, cancel := detached(ctx)
	defer cancel()
	if err := b.dedup.Forget(cctx, commentID); err != nil {
		logger.WithError(err).Warn("Не удалось снять маркер повтора")
	}
}

// alert отправляет уведомление операторам, не чаще лимита на тему.
func (b *Bot) alert(ctx context.Context, threadID, text string) {
	if b.notifier == nil || !b.alerts.Allow(threadID) {
		return
	}
	cctx, cancel := detached(ctx)
	defer cancel()
	if err := b.notifier.Notify(cctx, text); err != nil {
		common.Logger(ctx).WithError(err).Warn("Не удалось отправить уведомление операторам")
	}
}

// detached — контекст без отмены родителя, но с таймаутом:
// откат в леджере должен завершиться даже при остановке бота.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}
