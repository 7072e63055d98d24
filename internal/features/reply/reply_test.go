package reply

import (
	"strings"
	"testing"

	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/platform"
)

var (
	user  = platform.User{ID: "42", Name: "Tim_the_Sorcerer"}
	table = []levels.Level{
		{Name: "Helper", Threshold: 5},
		{Name: "Trusted", Threshold: 15},
	}
)

func bar(s string) string {
	r := strings.NewReplacer("#", FilledSymbol, ".", EmptySymbol, "*", ExcessSymbol)
	return r.Replace(s)
}

func newComposer() *Composer {
	return New(Options{Maintainer: "the moderators", ExcessPoints: 100})
}

func TestProgressBar(t *testing.T) {
	c := newComposer()
	tests := []struct {
		points int
		want   string
	}{
		{0, "[.....]"},
		{1, "[#....]"},
		{4, "[####.]"},
		{5, "[#####|..........]"},
		{7, "[#####|##........]"},
		{15, "[#####|##########]"},
		{40, "[#####|##########]"},
		{100, "[*]"},
		{150, "[*|" + strings.Repeat("#", 50) + "]"},
		{300, "[*|*|*]"},
	}
	for _, tt := range tests {
		got := c.ProgressBar(tt.points, levels.Resolve(tt.points, table))
		if want := bar(tt.want); got != want {
			t.Errorf("ProgressBar(%d) = %s, want %s", tt.points, got, want)
		}
	}
}

// Число разделителей = числу пройденных порогов (пока есть следующий уровень).
func TestProgressBarSegmentPerThreshold(t *testing.T) {
	c := New(Options{})
	tbl := []levels.Level{{Name: "A", Threshold: 1}, {Name: "B", Threshold: 3}, {Name: "C", Threshold: 6}, {Name: "D", Threshold: 10}}
	for p := 0; p < 10; p++ {
		info := levels.Resolve(p, tbl)
		crossed := len(info.Previous)
		if info.Current != nil {
			crossed++
		}
		got := strings.Count(c.ProgressBar(p, info), DivSymbol)
		if got != crossed {
			t.Errorf("points %d: %d dividers, want %d", p, got, crossed)
		}
		if n := strings.Count(c.ProgressBar(p, info), FilledSymbol); n != p {
			t.Errorf("points %d: %d filled cells", p, n)
		}
	}
}

func TestComposeFirstPoint(t *testing.T) {
	text := newComposer().Compose(user, 1, levels.Resolve(1, table))

	for _, want := range []string{
		"Thanks! Post marked as Solved!",
		"Congrats, u/Tim_the_Sorcerer, you have received a point!",
		`Next level: "Helper"  `,
		"You have 1 point  ",
		"You need 5 points  ",
		bar("[#....]"),
		"^(This bot is maintained by the moderators)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("reply missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "leveled up") {
		t.Errorf("unexpected level-up text:\n%s", text)
	}
}

func TestComposeFirstPointReachesLevel(t *testing.T) {
	tbl := []levels.Level{{Name: "Novice", Threshold: 1}, {Name: "Helper", Threshold: 5}}
	text := newComposer().Compose(user, 1, levels.Resolve(1, tbl))

	if !strings.Contains(text, `You have leveled up to "Novice"!`) {
		t.Errorf("missing untagged level-up:\n%s", text)
	}
	if strings.Contains(text, "Congrats u/Tim_the_Sorcerer, you have leveled up") {
		t.Errorf("user tagged twice:\n%s", text)
	}
}

func TestComposeLevelUp(t *testing.T) {
	text := newComposer().Compose(user, 5, levels.Resolve(5, table))

	if !strings.Contains(text, `Congrats u/Tim_the_Sorcerer, you have leveled up to "Helper"!`) {
		t.Errorf("missing level-up:\n%s", text)
	}
	if strings.Contains(text, "here is your points status") {
		t.Errorf("generic greeting next to level-up:\n%s", text)
	}
}

func TestComposeStatus(t *testing.T) {
	text := newComposer().Compose(user, 7, levels.Resolve(7, table))

	if !strings.Contains(text, "u/Tim_the_Sorcerer, here is your points status:") {
		t.Errorf("missing status greeting:\n%s", text)
	}
	if strings.Contains(text, "leveled up") {
		t.Errorf("unexpected level-up:\n%s", text)
	}
}

func TestComposeMaxLevel(t *testing.T) {
	text := newComposer().Compose(user, 20, levels.Resolve(20, table))

	if !strings.Contains(text, "MAXIMUM LEVEL ACHIEVED!!!  ") {
		t.Errorf("missing max level banner:\n%s", text)
	}
	if strings.Contains(text, "Next level") {
		t.Errorf("next level shown at max:\n%s", text)
	}
}

func TestComposeExcessMilestones(t *testing.T) {
	c := newComposer()

	text := c.Compose(user, 100, levels.Resolve(100, table))
	if !strings.Contains(text, "Congrats u/Tim_the_Sorcerer on getting 100 points! They are shown as a star") {
		t.Errorf("missing first star text:\n%s", text)
	}

	text = c.Compose(user, 200, levels.Resolve(200, table))
	if !strings.Contains(text, "on getting another 100 points!") {
		t.Errorf("missing another-star text:\n%s", text)
	}

	// Звезда и level up в одном ответе: пользователь упомянут один раз
	tbl := []levels.Level{{Name: "Master", Threshold: 100}}
	text = c.Compose(user, 100, levels.Resolve(100, tbl))
	if n := strings.Count(text, "u/Tim_the_Sorcerer"); n != 1 {
		t.Errorf("user mentioned %d times:\n%s", n, text)
	}
	if !strings.Contains(text, "Congrats on getting 100 points!") {
		t.Errorf("missing untagged star text:\n%s", text)
	}
}

func TestComposeRevoked(t *testing.T) {
	text := newComposer().ComposeRevoked(user, 4, levels.Resolve(4, table))

	for _, want := range []string{
		"A moderator has marked this post as not solved.",
		"a point has been removed",
		"You have 4 points  ",
		bar("[####.]"),
	} {
		if !strings.Contains(text, want) {
			t.Errorf("revoked reply missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Thanks! Post marked as Solved!") {
		t.Errorf("revoked reply has the solved header:\n%s", text)
	}
}

func TestFooterLinksAndMarkup(t *testing.T) {
	c := New(Options{
		FeedbackURL:   "https://example.com/feedback",
		ScoreboardURL: "https://example.com/top",
		Markup: Markup{
			Mention: func(u platform.User) string { return "<@" + u.ID + ">" },
			Small:   func(s string) string { return "-# " + s },
		},
	})
	text := c.Compose(user, 2, levels.Resolve(2, table))

	if !strings.Contains(text, "-# [Feedback](https://example.com/feedback) | [Scoreboard](https://example.com/top)") {
		t.Errorf("unexpected footer:\n%s", text)
	}
	if !strings.Contains(text, "<@42>, here is your points status:") {
		t.Errorf("custom mention not used:\n%s", text)
	}

	if text := New(Options{}).Compose(user, 2, levels.Resolve(2, table)); strings.Contains(text, "^(") {
		t.Errorf("empty footer rendered:\n%s", text)
	}
}
