// Package discord — адаптер площадки для форум-канала Discord.
//
// Тема форума — это thread внутри форум-канала, первое сообщение темы
// (starter message) имеет тот же ID, что и сама тема, и комментарием не считается.
// Ответ через «Reply» на другое сообщение становится вложенным комментарием,
// всё остальное — корневые комментарии под темой.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/features/reply"
	"serotonyl.ru/points-bot/internal/platform"
)

// Сколько сообщений Discord отдаёт за один запрос истории.
const pageSize = 100

// Options — параметры подключения.
type Options struct {
	Token          string
	GuildID        string
	ForumChannelID string
	// ModeratorRoles — роли, которые дают права модератора.
	// Кроме них модератором считается любой с Manage Messages в форуме.
	ModeratorRoles []string
	// LevelRoles — роли всех уровней; при повышении старые снимаются.
	LevelRoles []string
	// Buffer — сколько событий держим между gateway и циклом бота.
	Buffer int
	Debug  bool
}

// Client — реализация platform.Client поверх discordgo.
type Client struct {
	session *discordgo.Session
	opts    Options
	me      platform.User

	modRoles   map[string]bool
	levelRoles map[string]bool

	mu      sync.Mutex
	threads map[string]threadInfo
}

// threadInfo — закэшированный ответ на вопрос «это тема нашего форума?».
type threadInfo struct {
	inForum bool
	name    string
	ownerID string
}

// New создаёт сессию и узнаёт аккаунт бота. Gateway открывается в Connect.
func New(opts Options) (*Client, error) {
	session, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Discord сессии: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	// Переподключением управляет цикл бота
	session.ShouldReconnectOnError = false
	if opts.Debug {
		session.LogLevel = discordgo.LogInformational
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}

	self, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("не удалось получить аккаунт бота: %w", err)
	}
	log.Infof("Discord: авторизован как %s", self.Username)

	return &Client{
		session:    session,
		opts:       opts,
		me:         platform.User{ID: self.ID, Name: self.Username},
		modRoles:   toSet(opts.ModeratorRoles),
		levelRoles: toSet(opts.LevelRoles),
		threads:    make(map[string]threadInfo),
	}, nil
}

// Me возвращает аккаунт бота.
func (c *Client) Me() platform.User {
	return c.me
}

// Markup — упоминания и мелкий текст в разметке Discord.
func (c *Client) Markup() reply.Markup {
	return reply.Markup{
		Mention: func(u platform.User) string {
			if u.ID == "" {
				return "@" + u.Name
			}
			return "<@" + u.ID + ">"
		},
		Small: func(s string) string { return "-# " + s },
	}
}

// Connect открывает gateway и возвращает поток сообщений из тем форума.
// Поток живёт до Close или до разрыва соединения.
func (c *Client) Connect(ctx context.Context) (platform.CommentStream, error) {
	s := &stream{
		events: make(chan *platform.Comment, c.opts.Buffer),
		done:   make(chan struct{}),
	}

	s.removers = append(s.removers,
		c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
			// пустой опрос: соединение живое
			s.push(nil)
		}),
		c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			c.onMessage(s, m)
		}),
		c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			s.fail(common.ErrStreamClosed)
		}),
		c.session.AddHandler(func(_ *discordgo.Session, t *discordgo.ThreadUpdate) {
			c.forgetThread(t.ID)
		}),
	)

	if err := c.session.Open(); err != nil {
		s.removeHandlers()
		return nil, fmt.Errorf("не удалось открыть Discord gateway: %w", err)
	}
	s.closeSession = c.session.Close
	log.WithField("forum", c.opts.ForumChannelID).Info("Discord gateway открыт")
	return s, nil
}

func (c *Client) onMessage(s *stream, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID != c.opts.GuildID {
		return
	}
	// starter message темы — это сам вопрос
	if m.ID == m.ChannelID {
		return
	}
	info, err := c.thread(context.Background(), m.ChannelID)
	if err != nil {
		log.WithError(err).WithField("channel_id", m.ChannelID).Warn("Discord: не удалось определить канал сообщения")
		return
	}
	if !info.inForum {
		return
	}
	cm := toComment(m.Message, info)
	s.push(&cm)
}

// Thread возвращает тему форума.
func (c *Client) Thread(ctx context.Context, threadID string) (platform.Thread, error) {
	info, err := c.thread(ctx, threadID)
	if err != nil {
		return platform.Thread{}, err
	}
	if !info.inForum {
		return platform.Thread{}, fmt.Errorf("канал %s не тема форума: %w", threadID, common.ErrCommentNotFound)
	}
	return platform.Thread{
		ID:     threadID,
		Title:  info.name,
		Author: platform.User{ID: info.ownerID},
	}, nil
}

// Parent возвращает сообщение, на которое ответил c.
func (c *Client) Parent(ctx context.Context, cm platform.Comment) (platform.Comment, error) {
	if cm.ParentID == "" {
		return platform.Comment{}, fmt.Errorf("у корневого комментария %s нет родителя: %w", cm.ID, common.ErrCommentNotFound)
	}
	info, err := c.thread(ctx, cm.ThreadID)
	if err != nil {
		return platform.Comment{}, err
	}
	msg, err := c.session.ChannelMessage(cm.ThreadID, cm.ParentID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Comment{}, notFound(err, "комментарий "+cm.ParentID)
	}
	return toComment(msg, info), nil
}

// FlattenedComments выкачивает всю историю темы и возвращает её в хронологическом порядке.
func (c *Client) FlattenedComments(ctx context.Context, threadID string) ([]platform.Comment, error) {
	info, err := c.thread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	var pages [][]*discordgo.Message
	before := ""
	for {
		page, err := c.session.ChannelMessages(threadID, pageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, notFound(err, "история темы "+threadID)
		}
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		// Discord отдаёт от новых к старым
		before = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}
	return flatten(pages, threadID, info), nil
}

// IsModerator — роль модератора или право Manage Messages / Administrator в форуме.
func (c *Client) IsModerator(ctx context.Context, u platform.User) (bool, error) {
	if u.ID == "" {
		return false, nil
	}
	if len(c.modRoles) > 0 {
		member, err := c.session.GuildMember(c.opts.GuildID, u.ID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("участник %s: %w", u.ID, err)
		}
		if hasAnyRole(member.Roles, c.modRoles) {
			return true, nil
		}
	}
	perms, err := c.session.UserChannelPermissions(u.ID, c.opts.ForumChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("права %s в %s: %w", u.ID, c.opts.ForumChannelID, err)
	}
	return perms&(discordgo.PermissionManageMessages|discordgo.PermissionAdministrator) != 0, nil
}

// Reply отвечает на сообщение parent в его теме.
func (c *Client) Reply(ctx context.Context, parent platform.Comment, text string) error {
	ref := &discordgo.MessageReference{
		MessageID: parent.ID,
		ChannelID: parent.ThreadID,
		GuildID:   c.opts.GuildID,
	}
	_, err := c.session.ChannelMessageSendReply(parent.ThreadID, text, ref, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if rejected(err) {
		return fmt.Errorf("ответ на %s: %v: %w", parent.ID, err, common.ErrReplyRejected)
	}
	return fmt.Errorf("ответ на %s: %w", parent.ID, err)
}

// SetBadge выдаёт роль уровня и снимает роли предыдущих уровней.
// Пустой badgeID — у уровня нет роли, ничего не делаем.
func (c *Client) SetBadge(ctx context.Context, u platform.User, label, badgeID string) error {
	logger := log.WithFields(log.Fields{"user_id": u.ID, "level": label})
	if badgeID == "" {
		logger.Debug("Discord: у уровня нет роли")
		return nil
	}

	member, err := c.session.GuildMember(c.opts.GuildID, u.ID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("участник %s: %w", u.ID, err)
	}
	for _, role := range staleLevelRoles(member.Roles, c.levelRoles, badgeID) {
		if err := c.session.GuildMemberRoleRemove(c.opts.GuildID, u.ID, role, discordgo.WithContext(ctx)); err != nil {
			logger.WithError(err).WithField("role_id", role).Warn("Discord: не удалось снять старую роль уровня")
		}
	}
	if err := c.session.GuildMemberRoleAdd(c.opts.GuildID, u.ID, badgeID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("роль %s для %s: %w", badgeID, u.ID, err)
	}
	return nil
}

// thread определяет, принадлежит ли канал нашему форуму. Результат кэшируется.
func (c *Client) thread(ctx context.Context, channelID string) (threadInfo, error) {
	c.mu.Lock()
	info, ok := c.threads[channelID]
	c.mu.Unlock()
	if ok {
		return info, nil
	}

	ch, err := c.session.State.Channel(channelID)
	if err != nil {
		ch, err = c.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return threadInfo{}, notFound(err, "тема "+channelID)
		}
	}
	info = threadInfo{
		inForum: ch.IsThread() && ch.ParentID == c.opts.ForumChannelID,
		name:    ch.Name,
		ownerID: ch.OwnerID,
	}

	c.mu.Lock()
	c.threads[channelID] = info
	c.mu.Unlock()
	return info, nil
}

// forgetThread сбрасывает кэш после переименования или переноса темы.
func (c *Client) forgetThread(channelID string) {
	c.mu.Lock()
	delete(c.threads, channelID)
	c.mu.Unlock()
}

// toComment переводит сообщение Discord в комментарий.
// Reply на starter message считается корневым комментарием.
func toComment(m *discordgo.Message, info threadInfo) platform.Comment {
	cm := platform.Comment{
		ID:        m.ID,
		ThreadID:  m.ChannelID,
		Body:      m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		cm.Author = platform.User{ID: m.Author.ID, Name: m.Author.Username}
	}
	if ref := m.MessageReference; ref != nil && ref.MessageID != "" && ref.MessageID != m.ChannelID {
		cm.ParentID = ref.MessageID
	}
	cm.IsRoot = cm.ParentID == ""
	cm.IsByThreadAuthor = info.ownerID != "" && cm.Author.ID == info.ownerID
	return cm
}

// flatten склеивает страницы истории (от новых к старым) в хронологический список без starter message.
func flatten(pages [][]*discordgo.Message, threadID string, info threadInfo) []platform.Comment {
	var out []platform.Comment
	for _, page := range pages {
		for _, m := range page {
			if m == nil || m.ID == threadID {
				continue
			}
			out = append(out, toComment(m, info))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func staleLevelRoles(have []string, levelRoles map[string]bool, keep string) []string {
	var out []string
	for _, r := range have {
		if r != keep && levelRoles[r] {
			out = append(out, r)
		}
	}
	return out
}

func hasAnyRole(roles []string, set map[string]bool) bool {
	for _, r := range roles {
		if set[r] {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it != "" {
			set[it] = true
		}
	}
	return set
}

// rejected — Discord ответил 4xx: повтор не поможет (нет прав, тема закрыта, сообщение удалено).
func rejected(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil {
		return false
	}
	code := rest.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// notFound оборачивает 404 в ErrCommentNotFound.
func notFound(err error, what string) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, common.ErrCommentNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
