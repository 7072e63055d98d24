// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: склонение слова «point», обрезка текста для логов, разбор CSV из env.
package common

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PluralizePoints возвращает "point" для 1 и "points" для всего остального.
//
// Примеры:
//
//	PluralizePoints(1) → "point"
//	PluralizePoints(0) → "points"
//	PluralizePoints(5) → "points"
func PluralizePoints(n int) string {
	if n == 1 {
		return "point"
	}
	return "points"
}

// FormatPoints форматирует количество очков в читабельную строку.
// Пример: FormatPoints(5) → "5 points"
func FormatPoints(n int) string {
	return fmt.Sprintf("%d %s", n, PluralizePoints(n))
}

// Truncate обрезает текст до max рун и добавляет "..." (для логов).
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}

// SplitCSV разбивает строку "a, b,,c" на ["a", "b", "c"].
// Пустые элементы отбрасываются.
func SplitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseInt64CSV разбирает список int64 через запятую (ID администраторов и т.п.).
func ParseInt64CSV(s string) ([]int64, error) {
	parts := SplitCSV(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
