// Package reply формирует текст ответа бота под подтверждением решения.
//
// Структура ответа (абзацы через пустую строку):
//
//	заголовок
//	приветствие / level up / звезда за каждые ExcessPoints очков
//	статус очков + полоса прогресса
//	подпись со ссылками
package reply

import (
	"fmt"
	"strings"

	"serotonyl.ru/points-bot/internal/common"
	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/platform"
)

// Символы полосы прогресса.
const (
	FilledSymbol = "\u25AE"
	EmptySymbol  = "\u25AF"
	DivSymbol    = "|"
	ExcessSymbol = "\u2605"
	excessTitle  = "a star"
)

const (
	headerSolved  = "Thanks! Post marked as Solved!"
	headerRevoked = "A moderator has marked this post as not solved."
	maxLevelLine  = "MAXIMUM LEVEL ACHIEVED!!!"
)

// Options — настраиваемые части ответа.
type Options struct {
	// Maintainer — кто поддерживает бота (в подписи).
	Maintainer    string
	FeedbackURL   string
	ScoreboardURL string
	SourceURL     string
	// ExcessPoints — каждые N очков рисуются звездой; 0 — без звёзд.
	ExcessPoints int
	// Markup — разметка площадки; по умолчанию упоминания вида u/name и подпись ^(...).
	Markup Markup
}

// Markup — то, чем площадки различаются в тексте ответа.
type Markup struct {
	Mention func(platform.User) string
	Small   func(string) string
}

// DefaultMarkup — разметка в стиле Reddit.
func DefaultMarkup() Markup {
	return Markup{
		Mention: func(u platform.User) string { return "u/" + u.Name },
		Small:   func(s string) string { return "^(" + s + ")" },
	}
}

// Composer собирает ответы, состояния не хранит.
type Composer struct {
	opts Options
}

// New создаёт Composer.
func New(opts Options) *Composer {
	def := DefaultMarkup()
	if opts.Markup.Mention == nil {
		opts.Markup.Mention = def.Mention
	}
	if opts.Markup.Small == nil {
		opts.Markup.Small = def.Small
	}
	return &Composer{opts: opts}
}

// Compose — ответ на засчитанное решение.
func (c *Composer) Compose(user platform.User, points int, info levels.Info) string {
	paras := []string{headerSolved}

	switch {
	case points == 1:
		paras = append(paras, c.firstGreeting(user))
		if info.ReachedExactly(points) {
			paras = append(paras, c.levelUp(user, info.Current.Name, false))
		}
	case points > 1:
		tagged := false
		if info.ReachedExactly(points) {
			paras = append(paras, c.levelUp(user, info.Current.Name, true))
			tagged = true
		}
		if c.excessMilestone(points) {
			paras = append(paras, c.newExcessSymbol(user, points == c.opts.ExcessPoints, !tagged))
			tagged = true
		}
		if !tagged {
			paras = append(paras, c.normalGreeting(user))
		}
	}

	paras = append(paras, c.PointsStatus(points, info))
	if f := c.footer(); f != "" {
		paras = append(paras, f)
	}
	return strings.Join(paras, "\n\n")
}

// ComposeRevoked — ответ на отзыв решения модератором.
func (c *Composer) ComposeRevoked(user platform.User, points int, info levels.Info) string {
	paras := []string{
		headerRevoked,
		fmt.Sprintf("%s, a point has been removed. Here is your points status:", c.mention(user)),
		c.PointsStatus(points, info),
	}
	if f := c.footer(); f != "" {
		paras = append(paras, f)
	}
	return strings.Join(paras, "\n\n")
}

// PointsStatus — строки статуса и полоса прогресса.
// Два пробела в конце строки — перенос строки в Markdown без нового абзаца.
func (c *Composer) PointsStatus(points int, info levels.Info) string {
	var lines []string
	if info.Next != nil {
		lines = []string{
			fmt.Sprintf("Next level: \"%s\"", info.Next.Name),
			fmt.Sprintf("You have %s", common.FormatPoints(points)),
			fmt.Sprintf("You need %s", common.FormatPoints(info.Next.Threshold)),
		}
	} else {
		lines = []string{
			maxLevelLine,
			fmt.Sprintf("You have %s", common.FormatPoints(points)),
		}
	}
	for i := range lines {
		lines[i] += "  "
	}
	lines = append(lines, c.ProgressBar(points, info))
	return strings.Join(lines, "\n")
}

// ProgressBar рисует полосу: по сегменту на каждый пройденный уровень
// (длина — разница порогов), затем незаполненный сегмент до следующего уровня.
// Сегменты разделены DivSymbol. Если очков не меньше ExcessPoints,
// каждые ExcessPoints рисуются звездой, остаток — заполненными клетками.
//
// Пример (Helper=5, Trusted=15): 7 очков → [▮▮▮▮▮|▮▮▯▯▯▯▯▯▯▯]
func (c *Composer) ProgressBar(points int, info levels.Info) string {
	if c.opts.ExcessPoints > 0 && points >= c.opts.ExcessPoints {
		stars, leftover := points/c.opts.ExcessPoints, points%c.opts.ExcessPoints
		bar := strings.Join(strings.Split(strings.Repeat(ExcessSymbol, stars), ""), DivSymbol)
		if leftover > 0 {
			bar += DivSymbol + strings.Repeat(FilledSymbol, leftover)
		}
		return "[" + bar + "]"
	}

	var segments []string
	prev := 0
	reached := append([]levels.Level(nil), info.Previous...)
	if info.HasLevel() {
		reached = append(reached, *info.Current)
	}
	for _, l := range reached {
		segments = append(segments, strings.Repeat(FilledSymbol, l.Threshold-prev))
		prev = l.Threshold
	}

	if info.Next != nil {
		have := points - prev
		if have < 0 {
			have = 0
		}
		need := info.Next.Threshold - points
		if need < 0 {
			need = 0
		}
		segments = append(segments, strings.Repeat(FilledSymbol, have)+strings.Repeat(EmptySymbol, need))
	}

	return "[" + strings.Join(segments, DivSymbol) + "]"
}

func (c *Composer) excessMilestone(points int) bool {
	return c.opts.ExcessPoints > 0 && points > 0 && points%c.opts.ExcessPoints == 0
}

func (c *Composer) mention(user platform.User) string {
	return c.opts.Markup.Mention(user)
}

func (c *Composer) firstGreeting(user platform.User) string {
	return fmt.Sprintf("Congrats, %s, you have received a point! "+
		"Points help you \"level up\" to the next user flair!", c.mention(user))
}

func (c *Composer) normalGreeting(user platform.User) string {
	return fmt.Sprintf("%s, here is your points status:", c.mention(user))
}

func (c *Composer) levelUp(user platform.User, levelName string, tagUser bool) string {
	start := "Y"
	if tagUser {
		start = fmt.Sprintf("Congrats %s, y", c.mention(user))
	}
	return fmt.Sprintf("%sou have leveled up to \"%s\"! Your flair has been updated accordingly.", start, levelName)
}

func (c *Composer) newExcessSymbol(user platform.User, first, tagUser bool) string {
	tag := " "
	if tagUser {
		tag = " " + c.mention(user) + " "
	}
	another := " "
	if !first {
		another = " another "
	}
	return fmt.Sprintf("Congrats%son getting%s%d points! They are shown as %s in your progress bar.",
		tag, another, c.opts.ExcessPoints, excessTitle)
}

// footer — подпись мелким шрифтом; ссылки только те, что настроены.
func (c *Composer) footer() string {
	var parts []string
	if c.opts.Maintainer != "" {
		parts = append(parts, "This bot is maintained by "+c.opts.Maintainer)
	}
	if c.opts.FeedbackURL != "" {
		parts = append(parts, fmt.Sprintf("[Feedback](%s)", c.opts.FeedbackURL))
	}
	if c.opts.ScoreboardURL != "" {
		parts = append(parts, fmt.Sprintf("[Scoreboard](%s)", c.opts.ScoreboardURL))
	}
	if c.opts.SourceURL != "" {
		parts = append(parts, fmt.Sprintf("[Source code](%s)", c.opts.SourceURL))
	}
	if len(parts) == 0 {
		return ""
	}
	return c.opts.Markup.Small(strings.Join(parts, " | "))
}
