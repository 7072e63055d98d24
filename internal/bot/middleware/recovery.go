package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer в обработчике одного комментария:
// паника не роняет цикл, комментарий просто пропускается.
func RecoverFromPanic(logger *log.Entry) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = log.NewEntry(log.StandardLogger())
		}
		logger.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике — восстановлено")
	}
}
