// Package notify отправляет служебные уведомления операторам бота в Telegram:
// откаты начислений, сбои и еженедельную таблицу лидеров.
package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Noop — уведомления выключены (TELEGRAM_BOT_TOKEN не задан).
type Noop struct{}

// Notify ничего не делает.
func (Noop) Notify(ctx context.Context, text string) error { return nil }

// Telegram рассылает сообщения администраторам из ADMIN_IDS.
type Telegram struct {
	api      *tgbotapi.BotAPI
	adminIDs []int64
}

// NewTelegram авторизуется в Bot API.
func NewTelegram(token string, adminIDs []int64, debug bool) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	api.Debug = debug
	log.Infof("Уведомления: авторизован как @%s", api.Self.UserName)
	return &Telegram{api: api, adminIDs: adminIDs}, nil
}

// Notify отправляет text каждому администратору. Ошибки собираются, рассылка не прерывается.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, id := range t.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := t.api.Send(msg); err != nil {
			log.WithError(err).WithField("admin_id", id).Warn("Не удалось отправить уведомление")
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
