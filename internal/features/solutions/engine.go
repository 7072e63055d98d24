// Package solutions — engine.go классифицирует комментарий: начислить, отозвать или пропустить.
//
// Порядок:
//  1. Тема без нужного тега в заголовке — пропуск.
//  2. Отзыв модератором важнее любых подтверждений.
//  3. Подтверждение автором вопроса или модератором — начисление,
//     но если подтвердил не модератор, засчитывается только первое подтверждение в теме.
//
// Повторное начисление в той же теме отсекает уже леджер, движок про хранилище не знает.
package solutions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

// Outcome — итог классификации.
type Outcome int

const (
	Ignore Outcome = iota
	Award
	Revoke
)

func (o Outcome) String() string {
	switch o {
	case Award:
		return "award"
	case Revoke:
		return "revoke"
	default:
		return "ignore"
	}
}

// Причины пропуска (для логов и тестов).
const (
	ReasonNoPattern     = "no_pattern"
	ReasonUntagged      = "thread_not_tagged"
	ReasonRulesFailed   = "rules_failed"
	ReasonParentMissing = "parent_missing"
	ReasonSolverUnknown = "solver_unknown"
	ReasonNotFirst      = "not_first_confirmation"
)

// Decision — результат Classify.
type Decision struct {
	Outcome Outcome
	Reason  string

	// Comment — подтверждающий (или отзывающий) комментарий.
	Comment platform.Comment
	// Solution — комментарий, который засчитан решением (родитель Comment).
	Solution    platform.Comment
	Solver      platform.User
	Confirmer   platform.User
	ByModerator bool
}

// Forum — то, что движку нужно от площадки.
type Forum interface {
	platform.ThreadReader
	platform.ModerationQuery
}

// Options — настройки распознавания.
type Options struct {
	SolvedPattern    string
	ModSolvedPattern string
	ModRevokePattern string
	// ThreadTags — теги без скобок, в нижнем регистре. Пусто — все темы.
	ThreadTags []string
}

// Engine — движок правил.
type Engine struct {
	forum Forum

	solved    *regexp.Regexp
	modSolved *regexp.Regexp
	modRevoke *regexp.Regexp

	askerConfirms     RuleSet
	moderatorConfirms RuleSet
	moderatorRevokes  RuleSet

	tags []string
}

// NewEngine компилирует шаблоны и собирает наборы правил.
func NewEngine(forum Forum, opts Options) (*Engine, error) {
	solved, err := regexp.Compile(opts.SolvedPattern)
	if err != nil {
		return nil, fmt.Errorf("шаблон решения: %w", err)
	}
	modSolved, err := regexp.Compile(opts.ModSolvedPattern)
	if err != nil {
		return nil, fmt.Errorf("шаблон модератора: %w", err)
	}
	modRevoke, err := regexp.Compile(opts.ModRevokePattern)
	if err != nil {
		return nil, fmt.Errorf("шаблон отзыва: %w", err)
	}

	tags := make([]string, 0, len(opts.ThreadTags))
	for _, t := range opts.ThreadTags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, "["+t+"]")
		}
	}

	return &Engine{
		forum:             forum,
		solved:            solved,
		modSolved:         modSolved,
		modRevoke:         modRevoke,
		askerConfirms:     AskerConfirms(solved),
		moderatorConfirms: ModeratorConfirms(modSolved),
		moderatorRevokes:  ModeratorRevokes(modRevoke),
		tags:              tags,
	}, nil
}

// Classify решает, что делать с комментарием.
// Ошибка возвращается только при сбое площадки; «не подходит» — это Ignore с причиной.
func (e *Engine) Classify(ctx context.Context, c platform.Comment) (Decision, error) {
	logger := common.Logger(ctx)
	d := Decision{Outcome: Ignore, Comment: c, Confirmer: c.Author}

	// Без шаблона в тексте правила заведомо не пройдут — не ходим в API зря
	if !e.mentionsAnyPattern(c.Body) {
		d.Reason = ReasonNoPattern
		return d, nil
	}

	if len(e.tags) > 0 {
		thread, err := e.forum.Thread(ctx, c.ThreadID)
		if err != nil {
			return d, fmt.Errorf("тема %s: %w", c.ThreadID, err)
		}
		if !e.tagged(thread.Title) {
			d.Reason = ReasonUntagged
			return d, nil
		}
	}

	in, err := e.input(ctx, c, nil, nil)
	if err != nil {
		return d, err
	}

	revokes := e.moderatorRevokes.Passes(in, logger)
	askerOK := e.askerConfirms.Passes(in, logger)
	modOK := e.moderatorConfirms.Passes(in, logger)

	if !revokes && !askerOK && !modOK {
		d.Reason = ReasonRulesFailed
		if !c.IsRoot && in.Parent == nil {
			d.Reason = ReasonParentMissing
		}
		return d, nil
	}

	// Решатель — автор родительского комментария
	if in.Parent == nil {
		d.Reason = ReasonParentMissing
		return d, nil
	}
	if in.Parent.Author.IsZero() {
		d.Reason = ReasonSolverUnknown
		return d, nil
	}
	d.Solution = *in.Parent
	d.Solver = in.Parent.Author

	if revokes {
		d.Outcome = Revoke
		d.ByModerator = true
		return d, nil
	}

	// Подтверждение модератора (любым шаблоном) не сверяем с деревом темы
	confirmerIsMod := modOK
	if !confirmerIsMod {
		confirmerIsMod, err = e.forum.IsModerator(ctx, c.Author)
		if err != nil {
			return d, fmt.Errorf("проверка модератора %s: %w", c.Author.ID, err)
		}
	}
	d.ByModerator = confirmerIsMod
	if !confirmerIsMod {
		first, err := e.isFirstConfirmation(ctx, c)
		if err != nil {
			return d, err
		}
		if !first {
			d.Reason = ReasonNotFirst
			return d, nil
		}
	}

	d.Outcome = Award
	return d, nil
}

// isFirstConfirmation просматривает всё дерево темы: если раньше c уже было
// подходящее подтверждение, c не первое. Равные метки времени не дисквалифицируют.
func (e *Engine) isFirstConfirmation(ctx context.Context, c platform.Comment) (bool, error) {
	comments, err := e.forum.FlattenedComments(ctx, c.ThreadID)
	if err != nil {
		return false, fmt.Errorf("дерево темы %s: %w", c.ThreadID, err)
	}

	byID := make(map[string]platform.Comment, len(comments))
	for _, other := range comments {
		byID[other.ID] = other
	}
	moderators := make(map[string]bool)

	for _, other := range comments {
		if other.ID == c.ID || !other.CreatedAt.Before(c.CreatedAt) {
			continue
		}
		if !e.solved.MatchString(other.Body) && !e.modSolved.MatchString(other.Body) {
			continue
		}

		in, err := e.input(ctx, other, byID, moderators)
		if err != nil {
			return false, err
		}
		// Для чужих комментариев подробный лог проверок не нужен
		if e.askerConfirms.Passes(in, nil) || e.moderatorConfirms.Passes(in, nil) {
			common.Logger(ctx).WithField("earlier_comment_id", other.ID).
				Debug("В теме уже есть более раннее подтверждение")
			return false, nil
		}
	}
	return true, nil
}

// input собирает Input: родителя (из byID или через API) и признак модератора.
func (e *Engine) input(ctx context.Context, c platform.Comment,
	byID map[string]platform.Comment, moderators map[string]bool,
) (Input, error) {
	in := Input{Comment: c}

	if !c.IsRoot && c.ParentID != "" {
		if p, ok := byID[c.ParentID]; ok {
			in.Parent = &p
		} else {
			p, err := e.forum.Parent(ctx, c)
			switch {
			case err == nil:
				in.Parent = &p
			case errors.Is(err, common.ErrCommentNotFound):
				// родитель удалён — решателя нет
			default:
				return in, fmt.Errorf("родитель %s: %w", c.ParentID, err)
			}
		}
	}

	// Модератора проверяем, только если в тексте есть модераторская команда
	if e.modSolved.MatchString(c.Body) || e.modRevoke.MatchString(c.Body) {
		if c.Author.IsZero() {
			return in, nil
		}
		if v, ok := moderators[c.Author.ID]; ok {
			in.IsModerator = v
			return in, nil
		}
		isMod, err := e.forum.IsModerator(ctx, c.Author)
		if err != nil {
			return in, fmt.Errorf("проверка модератора %s: %w", c.Author.ID, err)
		}
		in.IsModerator = isMod
		if moderators != nil {
			moderators[c.Author.ID] = isMod
		}
	}
	return in, nil
}

func (e *Engine) mentionsAnyPattern(body string) bool {
	return e.solved.MatchString(body) || e.modSolved.MatchString(body) || e.modRevoke.MatchString(body)
}

func (e *Engine) tagged(title string) bool {
	title = strings.ToLower(title)
	for _, t := range e.tags {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

// Tags возвращает теги, за которыми следит движок (со скобками).
func (e *Engine) Tags() []string {
	return append([]string(nil), e.tags...)
}
