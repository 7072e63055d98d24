package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает число событий на ключ в скользящем окне.
// Бот использует его, чтобы не засыпать операторов одинаковыми уведомлениями.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter создаёт ограничитель: не больше limit событий за window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow регистрирует событие и сообщает, укладывается ли оно в лимит.
// Заодно удаляет отметки старше окна.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	for k, times := range rl.requests {
		recent := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
		if len(recent) == 0 {
			delete(rl.requests, k)
		} else {
			rl.requests[k] = recent
		}
	}

	if len(rl.requests[key]) >= rl.limit {
		return false
	}
	rl.requests[key] = append(rl.requests[key], now)
	return true
}
