// Package middleware содержит обёртки обработки комментария:
// логирование, восстановление после паники и ограничение частоты уведомлений.
package middleware

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

// CommentLogger создаёт логгер с полями комментария и новым trace_id.
// Все строки лога по одному комментарию можно найти по trace_id.
func CommentLogger(c *platform.Comment) *log.Entry {
	return log.WithFields(log.Fields{
		"trace_id":   uuid.NewString(),
		"comment_id": c.ID,
		"thread_id":  c.ThreadID,
		"user_id":    c.Author.ID,
	})
}

// LogComment логирует входящий комментарий (текст — первые 50 символов).
func LogComment(logger *log.Entry, c *platform.Comment) {
	logger.WithFields(log.Fields{
		"parent_id": c.ParentID,
		"username":  c.Author.Name,
		"text":      common.Truncate(c.Body, 50),
	}).Debug("Входящий комментарий")
}
