// Package common — pluralize.go содержит склонение русских числительных
// для служебных сообщений операторам (ответы на форуме — на английском, см. helpers.go).
package common

import "fmt"

// PluralizeRu выбирает форму слова для числа n.
//
// Примеры:
//
//	PluralizeRu(1, "очко", "очка", "очков")  → "очко"
//	PluralizeRu(3, "очко", "очка", "очков")  → "очка"
//	PluralizeRu(11, "очко", "очка", "очков") → "очков"
func PluralizeRu(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	n100 := n % 100
	if n100 >= 11 && n100 <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}

// FormatPointsRu — «1 очко», «2 350 очков».
func FormatPointsRu(n int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(n), PluralizeRu(n, "очко", "очка", "очков"))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
