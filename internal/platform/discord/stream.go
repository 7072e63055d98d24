package discord

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

// stream перекладывает события gateway (приходят из горутин discordgo)
// в канал, который читает цикл бота.
type stream struct {
	events chan *platform.Comment
	done   chan struct{}

	once     sync.Once
	mu       sync.Mutex
	err      error
	removers []func()

	closeSession func() error
}

// push кладёт событие в буфер. Если буфер полон, событие теряется (gateway не блокируем).
func (s *stream) push(c *platform.Comment) {
	select {
	case <-s.done:
	case s.events <- c:
	default:
		if c != nil {
			log.WithField("comment_id", c.ID).Warn("Discord: буфер событий переполнен, сообщение пропущено")
		}
	}
}

// fail завершает поток с ошибкой.
func (s *stream) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Next отдаёт следующее событие. Сначала вычитывает буфер, потом сообщает о разрыве.
func (s *stream) Next(ctx context.Context) (*platform.Comment, error) {
	select {
	case c := <-s.events:
		return c, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.events:
		return c, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.err
	}
}

// Close снимает обработчики и закрывает gateway.
func (s *stream) Close() error {
	s.fail(common.ErrStreamClosed)
	s.removeHandlers()
	if s.closeSession != nil {
		return s.closeSession()
	}
	return nil
}

func (s *stream) removeHandlers() {
	s.mu.Lock()
	removers := s.removers
	s.removers = nil
	s.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
}
