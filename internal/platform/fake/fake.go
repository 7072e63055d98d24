// Package fake — форум в памяти для тестов.
// Хранит темы и комментарии, запоминает ответы и бейджи,
// умеет имитировать отказ в публикации ответа и разрыв потока.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

// Reply — опубликованный ботом ответ.
type Reply struct {
	ParentID string
	ThreadID string
	Text     string
}

// Badge — выставленный бейдж.
type Badge struct {
	User    platform.User
	Label   string
	BadgeID string
}

// Client — in-memory реализация platform.Client.
type Client struct {
	mu sync.Mutex

	me         platform.User
	threads    map[string]platform.Thread
	comments   map[string]platform.Comment
	order      []string
	moderators map[string]bool

	Replies []Reply
	Badges  []Badge

	// RejectReplies — все ответы отклоняются (ErrReplyRejected).
	RejectReplies bool
	// BadgeErr — ошибка, которую вернёт SetBadge.
	BadgeErr error

	// TreeFetches считает вызовы FlattenedComments.
	TreeFetches int
	// ThreadFetches считает вызовы Thread.
	ThreadFetches int
	// Connects считает открытия потока.
	Connects int

	// streams — очереди комментариев, по одной на каждое подключение.
	// Когда очередь кончается, поток возвращает ErrStreamClosed.
	streams [][]*platform.Comment
}

// New создаёт пустой форум, в котором бот работает под аккаунтом me.
func New(me platform.User) *Client {
	return &Client{
		me:         me,
		threads:    make(map[string]platform.Thread),
		comments:   make(map[string]platform.Comment),
		moderators: make(map[string]bool),
	}
}

// AddThread регистрирует тему.
func (c *Client) AddThread(t platform.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[t.ID] = t
}

// AddModerator делает пользователя модератором раздела.
func (c *Client) AddModerator(u platform.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moderators[u.ID] = true
}

// AddComment добавляет комментарий в дерево темы и проставляет IsRoot/IsByThreadAuthor.
func (c *Client) AddComment(cm platform.Comment) platform.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()

	cm.IsRoot = cm.ParentID == ""
	if t, ok := c.threads[cm.ThreadID]; ok {
		cm.IsByThreadAuthor = t.Author.Same(cm.Author)
	}
	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = time.Unix(int64(1_600_000_000+len(c.order)), 0).UTC()
	}
	if _, exists := c.comments[cm.ID]; !exists {
		c.order = append(c.order, cm.ID)
	}
	c.comments[cm.ID] = cm
	return cm
}

// QueueStream добавляет очередь комментариев для следующего подключения.
func (c *Client) QueueStream(comments ...*platform.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = append(c.streams, comments)
}

// Me возвращает аккаунт бота.
func (c *Client) Me() platform.User {
	return c.me
}

// Connect отдаёт следующую очередь комментариев.
func (c *Client) Connect(ctx context.Context) (platform.CommentStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connects++
	if len(c.streams) == 0 {
		return &stream{}, nil
	}
	s := &stream{items: c.streams[0]}
	c.streams = c.streams[1:]
	return s, nil
}

// ConnectCount — сколько раз открывали поток (безопасно из другой горутины).
func (c *Client) ConnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connects
}

// Thread возвращает тему по ID.
func (c *Client) Thread(ctx context.Context, threadID string) (platform.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ThreadFetches++
	t, ok := c.threads[threadID]
	if !ok {
		return platform.Thread{}, fmt.Errorf("тема %s: %w", threadID, common.ErrCommentNotFound)
	}
	return t, nil
}

// Parent возвращает родительский комментарий.
func (c *Client) Parent(ctx context.Context, cm platform.Comment) (platform.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cm.ParentID == "" {
		return platform.Comment{}, fmt.Errorf("у корневого комментария %s нет родителя: %w", cm.ID, common.ErrCommentNotFound)
	}
	p, ok := c.comments[cm.ParentID]
	if !ok {
		return platform.Comment{}, fmt.Errorf("комментарий %s: %w", cm.ParentID, common.ErrCommentNotFound)
	}
	return p, nil
}

// FlattenedComments возвращает все комментарии темы в порядке добавления.
func (c *Client) FlattenedComments(ctx context.Context, threadID string) ([]platform.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TreeFetches++
	var out []platform.Comment
	for _, id := range c.order {
		if cm := c.comments[id]; cm.ThreadID == threadID {
			out = append(out, cm)
		}
	}
	return out, nil
}

// IsModerator проверяет модератора по ID.
func (c *Client) IsModerator(ctx context.Context, u platform.User) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moderators[u.ID], nil
}

// Reply запоминает ответ или отклоняет его.
func (c *Client) Reply(ctx context.Context, parent platform.Comment, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RejectReplies {
		return fmt.Errorf("ответ на %s: %w", parent.ID, common.ErrReplyRejected)
	}
	c.Replies = append(c.Replies, Reply{ParentID: parent.ID, ThreadID: parent.ThreadID, Text: text})
	return nil
}

// SetBadge запоминает бейдж.
func (c *Client) SetBadge(ctx context.Context, u platform.User, label, badgeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BadgeErr != nil {
		return c.BadgeErr
	}
	c.Badges = append(c.Badges, Badge{User: u, Label: label, BadgeID: badgeID})
	return nil
}

// LastReply возвращает последний ответ бота (или пустой Reply).
func (c *Client) LastReply() Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Replies) == 0 {
		return Reply{}
	}
	return c.Replies[len(c.Replies)-1]
}

type stream struct {
	items  []*platform.Comment
	closed bool
}

func (s *stream) Next(ctx context.Context) (*platform.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || len(s.items) == 0 {
		return nil, common.ErrStreamClosed
	}
	next := s.items[0]
	s.items = s.items[1:]
	return next, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
