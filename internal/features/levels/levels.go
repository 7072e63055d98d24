// Package levels — уровни участников (роли/бейджи), которые открываются по мере набора очков.
// levels.go описывает таблицу уровней и вычисляет, на каком уровне находится пользователь.
package levels

import (
	"fmt"
	"sort"
	"strings"

	"serotonyl.ru/points-bot/internal/common"
)

// Level — один уровень из конфигурации.
type Level struct {
	Name      string `yaml:"name"`
	Threshold int    `yaml:"points"`
	// BadgeID — идентификатор бейджа на платформе (для Discord — ID роли). Может быть пустым.
	BadgeID string `yaml:"badge_id"`
}

// Info — положение пользователя относительно таблицы уровней.
// Не хранится в БД, всегда вычисляется заново из количества очков.
type Info struct {
	Previous []Level // пройденные уровни, кроме текущего
	Current  *Level  // nil, пока не набрано ни одного уровня
	Next     *Level  // nil, если достигнут максимальный уровень
}

// HasLevel сообщает, достигнут ли хоть один уровень.
func (i Info) HasLevel() bool {
	return i.Current != nil
}

// IsMaxLevel — текущий уровень последний в таблице.
func (i Info) IsMaxLevel() bool {
	return i.Current != nil && i.Next == nil
}

// ReachedExactly — уровень был получен именно на этом количестве очков.
// По этому признаку решаем, писать ли «level up» и менять ли бейдж.
func (i Info) ReachedExactly(points int) bool {
	return i.Current != nil && i.Current.Threshold == points
}

// Resolve вычисляет Info для points.
//
// Уровень считается достигнутым, если points > 0 и points >= Threshold:
// уровень с порогом 0 не открывается, пока нет хотя бы одного очка.
// Таблица должна быть отсортирована по возрастанию порога (см. Normalize).
//
// Примеры (Helper=5, Trusted=15):
//
//	Resolve(0)  → ([], nil, Helper)
//	Resolve(5)  → ([], Helper, Trusted)
//	Resolve(20) → ([Helper], Trusted, nil)
func Resolve(points int, table []Level) Info {
	var info Info
	for i := range table {
		lvl := table[i]
		if points <= 0 || points < lvl.Threshold {
			info.Next = &lvl
			break
		}
		if info.Current != nil {
			info.Previous = append(info.Previous, *info.Current)
		}
		info.Current = &lvl
	}
	return info
}

// Normalize сортирует таблицу по порогу и проверяет её.
// Пороги должны быть уникальными и неотрицательными, имена — непустыми.
func Normalize(table []Level) ([]Level, error) {
	out := make([]Level, len(table))
	copy(out, table)

	for i := range out {
		out[i].Name = strings.TrimSpace(out[i].Name)
		if out[i].Name == "" {
			return nil, fmt.Errorf("%w: уровень #%d без имени", common.ErrInvalidLevels, i+1)
		}
		if out[i].Threshold < 0 {
			return nil, fmt.Errorf("%w: отрицательный порог у %q", common.ErrInvalidLevels, out[i].Name)
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Threshold < out[b].Threshold
	})

	for i := 1; i < len(out); i++ {
		if out[i].Threshold == out[i-1].Threshold {
			return nil, fmt.Errorf("%w: одинаковый порог %d у %q и %q",
				common.ErrInvalidLevels, out[i].Threshold, out[i-1].Name, out[i].Name)
		}
	}
	return out, nil
}
