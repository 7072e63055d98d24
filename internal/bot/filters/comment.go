// Package filters отсекает комментарии, которые не нужно даже классифицировать.
package filters

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/platform"
)

// CommentFilter пропускает только «живые» комментарии от других пользователей.
type CommentFilter struct {
	me platform.User
}

// NewCommentFilter создаёт фильтр для бота с аккаунтом me.
func NewCommentFilter(me platform.User) *CommentFilter {
	return &CommentFilter{me: me}
}

// Check возвращает true, если комментарий нужно обрабатывать дальше.
// Ничего не запрашивает у площадки.
func (f *CommentFilter) Check(c *platform.Comment, logger *log.Entry) bool {
	if c == nil {
		return false
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "CommentFilter")

	// 1) Свои ответы не обрабатываем (по ID или по имени)
	if f.me.Same(c.Author) {
		logger.Debug("skip: комментарий написал сам бот")
		return false
	}
	// 2) Удалённый автор
	if c.Author.IsZero() {
		logger.Debug("skip: автор удалён")
		return false
	}
	// 3) Пустой текст (вложения без подписи и т.п.)
	if strings.TrimSpace(c.Body) == "" {
		logger.Debug("skip: пустой комментарий")
		return false
	}
	return true
}
