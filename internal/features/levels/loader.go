// Package levels — loader.go читает таблицу уровней из YAML-файла.
//
// Формат файла:
//
//	levels:
//	  - name: Helper
//	    points: 5
//	    badge_id: "112233445566778899"
//	  - name: Trusted Helper
//	    points: 15
package levels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type file struct {
	Levels []Level `yaml:"levels"`
}

// LoadFile читает, сортирует и проверяет таблицу уровней.
func LoadFile(path string) ([]Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл уровней %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse разбирает YAML с таблицей уровней.
func Parse(raw []byte) ([]Level, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора YAML уровней: %w", err)
	}
	return Normalize(f.Levels)
}
