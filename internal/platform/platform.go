// Package platform описывает всё, что бот получает от форума и делает на форуме.
// Ядро (правила, леджер, ответы) работает только с этими типами и интерфейсами,
// конкретная площадка подключается адаптером (см. platform/discord).
package platform

import (
	"context"
	"strings"
	"time"
)

// User — участник форума. ID стабилен, имя может меняться.
type User struct {
	ID   string
	Name string
}

// IsZero — автор неизвестен (удалённый аккаунт или удалённый комментарий).
func (u User) IsZero() bool {
	return u.ID == "" && u.Name == ""
}

// Same сравнивает пользователей по ID, а если ID нет — по имени без учёта регистра.
func (u User) Same(other User) bool {
	if u.ID != "" && other.ID != "" {
		return u.ID == other.ID
	}
	return u.Name != "" && strings.EqualFold(u.Name, other.Name)
}

// Comment — комментарий в теме. Ядро его никогда не изменяет.
type Comment struct {
	ID       string
	ThreadID string
	// ParentID — родительский комментарий; пустой у корневых комментариев.
	ParentID string
	Author   User
	Body     string
	// IsRoot — комментарий написан прямо под темой, без родителя.
	IsRoot bool
	// IsByThreadAuthor — автор комментария создал тему (OP).
	IsByThreadAuthor bool
	CreatedAt        time.Time
}

// Thread — тема (вопрос) со всеми вложенными комментариями.
type Thread struct {
	ID     string
	Title  string
	Author User
}

// CommentStream — поток новых комментариев.
// Next блокируется до следующего комментария; (nil, nil) — пустой опрос, его пропускаем.
// Любая ошибка, кроме отмены ctx, означает разрыв: поток закрывают и переподключаются.
type CommentStream interface {
	Next(ctx context.Context) (*Comment, error)
	Close() error
}

// Connector открывает поток комментариев (заново при каждом переподключении).
type Connector interface {
	Connect(ctx context.Context) (CommentStream, error)
}

// ThreadReader читает темы и дерево комментариев.
type ThreadReader interface {
	Thread(ctx context.Context, threadID string) (Thread, error)
	// Parent возвращает родителя комментария. Для корневого комментария — ошибка.
	Parent(ctx context.Context, c Comment) (Comment, error)
	// FlattenedComments возвращает все комментарии темы, включая скрытые/подгружаемые.
	FlattenedComments(ctx context.Context, threadID string) ([]Comment, error)
}

// ModerationQuery проверяет права модератора в разделе форума.
type ModerationQuery interface {
	IsModerator(ctx context.Context, user User) (bool, error)
}

// ReplyAction публикует ответ. Отказ платформы оборачивает common.ErrReplyRejected.
type ReplyAction interface {
	Reply(ctx context.Context, parent Comment, text string) error
}

// BadgeAction выставляет публичный бейдж пользователя. Ошибки не фатальны.
type BadgeAction interface {
	SetBadge(ctx context.Context, user User, label, badgeID string) error
}

// Client — всё вместе; реализуется адаптером площадки и фейком для тестов.
type Client interface {
	Connector
	ThreadReader
	ModerationQuery
	ReplyAction
	BadgeAction
	// Me — аккаунт самого бота.
	Me() User
}
