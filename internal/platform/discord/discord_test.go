package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/platform"
)

var thread = threadInfo{inForum: true, name: "[Help] wifi drops", ownerID: "op"}

func msg(id, author string, at int64, replyTo string) *discordgo.Message {
	m := &discordgo.Message{
		ID:        id,
		ChannelID: "t1",
		Content:   "text " + id,
		Author:    &discordgo.User{ID: author, Username: "name-" + author},
		Timestamp: time.Unix(at, 0),
	}
	if replyTo != "" {
		m.MessageReference = &discordgo.MessageReference{MessageID: replyTo, ChannelID: "t1"}
	}
	return m
}

func TestToComment(t *testing.T) {
	tests := []struct {
		name       string
		m          *discordgo.Message
		wantParent string
		wantRoot   bool
		wantOP     bool
	}{
		{"plain message is root", msg("m1", "helper", 1, ""), "", true, false},
		{"reply to starter is root", msg("m2", "op", 2, "t1"), "", true, true},
		{"reply to comment is nested", msg("m3", "op", 3, "m1"), "m1", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := toComment(tt.m, thread)
			if c.ParentID != tt.wantParent || c.IsRoot != tt.wantRoot || c.IsByThreadAuthor != tt.wantOP {
				t.Fatalf("comment = %+v", c)
			}
			if c.ThreadID != "t1" || c.Author.Name != "name-"+tt.m.Author.ID {
				t.Fatalf("comment = %+v", c)
			}
		})
	}
}

func TestToCommentWithoutAuthor(t *testing.T) {
	m := msg("m1", "x", 1, "")
	m.Author = nil
	if c := toComment(m, thread); !c.Author.IsZero() || c.IsByThreadAuthor {
		t.Fatalf("comment = %+v", c)
	}
}

func TestFlattenChronologicalWithoutStarter(t *testing.T) {
	// Страницы от новых к старым, как их отдаёт Discord
	pages := [][]*discordgo.Message{
		{msg("m4", "op", 40, "m2"), msg("m3", "helper", 30, "")},
		{msg("m2", "helper", 20, ""), msg("t1", "op", 10, "")},
	}

	got := flatten(pages, "t1", thread)

	want := []string{"m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("got %d comments, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestStaleLevelRoles(t *testing.T) {
	levelRoles := toSet([]string{"r-helper", "r-trusted", ""})
	got := staleLevelRoles([]string{"r-helper", "r-other", "r-trusted"}, levelRoles, "r-trusted")
	if len(got) != 1 || got[0] != "r-helper" {
		t.Fatalf("stale = %v", got)
	}
	if len(levelRoles) != 2 {
		t.Fatalf("empty role kept in set: %v", levelRoles)
	}
}

func TestHasAnyRole(t *testing.T) {
	mods := toSet([]string{"mod"})
	if !hasAnyRole([]string{"a", "mod"}, mods) {
		t.Fatal("moderator role not found")
	}
	if hasAnyRole([]string{"a"}, mods) || hasAnyRole(nil, mods) {
		t.Fatal("unexpected moderator")
	}
}

func restErr(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
}

func TestRejectedAndNotFound(t *testing.T) {
	if !rejected(restErr(http.StatusForbidden)) {
		t.Error("403 must be a rejection")
	}
	if rejected(restErr(http.StatusTooManyRequests)) || rejected(restErr(http.StatusBadGateway)) {
		t.Error("429/502 are transient")
	}
	if rejected(errors.New("dial tcp: timeout")) {
		t.Error("network error is not a rejection")
	}

	wrapped := fmt.Errorf("call: %w", restErr(http.StatusNotFound))
	if err := notFound(wrapped, "тема"); !errors.Is(err, common.ErrCommentNotFound) {
		t.Errorf("404 not mapped: %v", err)
	}
	if err := notFound(restErr(http.StatusForbidden), "тема"); errors.Is(err, common.ErrCommentNotFound) {
		t.Errorf("403 mapped to not found: %v", err)
	}
}

func TestMarkup(t *testing.T) {
	c := &Client{}
	m := c.Markup()
	if got := m.Mention(platform.User{ID: "42", Name: "tim"}); got != "<@42>" {
		t.Errorf("mention = %q", got)
	}
	if got := m.Small("footer"); got != "-# footer" {
		t.Errorf("small = %q", got)
	}
}

func TestStreamDrainsBufferBeforeError(t *testing.T) {
	s := &stream{events: make(chan *platform.Comment, 2), done: make(chan struct{})}
	c := platform.Comment{ID: "m1"}
	s.push(nil)
	s.push(&c)
	s.fail(common.ErrStreamClosed)

	ctx := context.Background()
	if got, err := s.Next(ctx); err != nil || got != nil {
		t.Fatalf("first = %v, %v; want empty poll", got, err)
	}
	if got, err := s.Next(ctx); err != nil || got == nil || got.ID != "m1" {
		t.Fatalf("second = %v, %v", got, err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, common.ErrStreamClosed) {
		t.Fatalf("third err = %v, want ErrStreamClosed", err)
	}
}

func TestStreamDropsWhenFull(t *testing.T) {
	s := &stream{events: make(chan *platform.Comment, 1), done: make(chan struct{})}
	a, b := platform.Comment{ID: "a"}, platform.Comment{ID: "b"}
	s.push(&a)
	s.push(&b)

	if got, _ := s.Next(context.Background()); got.ID != "a" {
		t.Fatalf("got %s, want a", got.ID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
