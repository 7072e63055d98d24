//go:build ignore

// preview_reply.go — показывает, как будет выглядеть ответ бота при данном количестве очков.
// Удобно проверять новую таблицу уровней перед деплоем.
// Запуск: go run scripts/preview_reply.go levels.yaml 7
package main

import (
	"fmt"
	"os"
	"strconv"

	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/features/reply"
	"serotonyl.ru/points-bot/internal/platform"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Использование: go run scripts/preview_reply.go <levels.yaml> <очки>")
		os.Exit(1)
	}

	table, err := levels.LoadFile(os.Args[1])
	if err != nil {
		fmt.Println("Ошибка:", err)
		os.Exit(1)
	}
	points, err := strconv.Atoi(os.Args[2])
	if err != nil || points < 0 {
		fmt.Println("Очки должны быть неотрицательным числом")
		os.Exit(1)
	}

	composer := reply.New(reply.Options{Maintainer: "the moderators", ExcessPoints: 100})
	user := platform.User{ID: "0", Name: "example_user"}
	fmt.Println(composer.Compose(user, points, levels.Resolve(points, table)))
}
