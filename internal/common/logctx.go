package common

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger кладёт логгер с полями текущего комментария в контекст.
func WithLogger(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// Logger достаёт логгер из контекста; если его нет — логгер без полей.
func Logger(ctx context.Context) *log.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*log.Entry); ok && entry != nil {
		return entry
	}
	return log.NewEntry(log.StandardLogger())
}
