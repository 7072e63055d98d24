// Package solutions распознаёт, что вопрос помечен решённым (или отметка снята модератором).
// rules.go — наборы правил в виде таблиц: у каждой проверки есть имя,
// сообщения для лога и предикат. Набор проходит, только если прошли все проверки.
package solutions

import (
	"regexp"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/platform"
)

// Input — всё, что нужно правилам про один комментарий.
type Input struct {
	Comment platform.Comment
	// Parent — родитель комментария; nil у корневого или если родитель удалён.
	Parent      *platform.Comment
	IsModerator bool
}

// Check — одна проверка из набора правил.
type Check struct {
	Name    string
	Success string
	Failure string
	Test    func(in Input) bool
}

// RuleSet — именованный упорядоченный список проверок.
type RuleSet struct {
	Name   string
	Checks []Check
}

// Passes прогоняет все проверки (для полного лога) и сообщает, прошли ли все.
func (r RuleSet) Passes(in Input, logger *log.Entry) bool {
	ok := true
	for _, c := range r.Checks {
		passed := c.Test(in)
		msg := c.Success
		if !passed {
			msg = c.Failure
			ok = false
		}
		if logger != nil {
			logger.WithFields(log.Fields{
				"rule":   r.Name,
				"check":  c.Name,
				"passed": passed,
			}).Debug(msg)
		}
	}
	return ok
}

// Первая проверка каждого набора — текст. Остальные проверки смотрят на метаданные.

func matches(pattern *regexp.Regexp) func(Input) bool {
	return func(in Input) bool { return pattern.MatchString(in.Comment.Body) }
}

func notRoot(in Input) bool { return !in.Comment.IsRoot }

func byThreadAuthor(in Input) bool { return in.Comment.IsByThreadAuthor }

func byModerator(in Input) bool { return in.IsModerator }

// parentNotByThreadAuthor — автор темы не может засчитать решением свой же комментарий.
func parentNotByThreadAuthor(in Input) bool {
	return in.Parent != nil && !in.Parent.IsByThreadAuthor
}

// AskerConfirms — автор вопроса отметил ответ решением.
func AskerConfirms(pattern *regexp.Regexp) RuleSet {
	return RuleSet{
		Name: "asker_confirms",
		Checks: []Check{
			{"pattern", "Комментарий содержит отметку решения", "Нет отметки решения", matches(pattern)},
			{"not_root", "Комментарий — ответ на другой комментарий", "Комментарий корневой", notRoot},
			{"by_op", "Автор комментария — автор темы", "Автор комментария не автор темы", byThreadAuthor},
			{"parent_not_op", "Решение написал не автор темы", "Автор темы отвечает сам себе", parentNotByThreadAuthor},
		},
	}
}

// ModeratorConfirms — модератор засчитал ответ решением (в любой теме, включая свою).
func ModeratorConfirms(pattern *regexp.Regexp) RuleSet {
	return RuleSet{
		Name: "moderator_confirms",
		Checks: []Check{
			{"pattern", "Комментарий содержит отметку модератора", "Нет отметки модератора", matches(pattern)},
			{"not_root", "Комментарий — ответ на другой комментарий", "Комментарий корневой", notRoot},
			{"by_moderator", "Автор — модератор", "Автор не модератор", byModerator},
		},
	}
}

// ModeratorRevokes — модератор снял отметку решения.
func ModeratorRevokes(pattern *regexp.Regexp) RuleSet {
	return RuleSet{
		Name: "moderator_revokes",
		Checks: []Check{
			{"pattern", "Комментарий содержит отзыв решения", "Нет отзыва решения", matches(pattern)},
			{"not_root", "Комментарий — ответ на другой комментарий", "Комментарий корневой", notRoot},
			{"by_moderator", "Автор — модератор", "Автор не модератор", byModerator},
		},
	}
}
