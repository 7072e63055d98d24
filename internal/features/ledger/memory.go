// Package ledger — memory.go: хранилище в памяти.
// Используется в тестах и для локального запуска без PostgreSQL (LEDGER_DRIVER=memory).
//
// Транзакция работает с копией состояния: при успехе копия заменяет оригинал,
// при ошибке просто выбрасывается. Мьютекс держится всю транзакцию.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/points-bot/internal/platform"
)

// MemoryStore — Store в памяти процесса.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	users     map[string]Entry
	solutions map[int64]Solution
	nextID    int64
}

func (s memState) clone() memState {
	out := memState{
		users:     make(map[string]Entry, len(s.users)),
		solutions: make(map[int64]Solution, len(s.solutions)),
		nextID:    s.nextID,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.solutions {
		out.solutions[k] = copySolution(v)
	}
	return out
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		users:     make(map[string]Entry),
		solutions: make(map[int64]Solution),
	}}
}

// WithTx выполняет fn над копией состояния.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// Points возвращает очки; для неизвестного пользователя — 0.
func (m *MemoryStore) Points(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[userID].Points, nil
}

// HasActiveSolution проверяет наличие активного решения.
func (m *MemoryStore) HasActiveSolution(ctx context.Context, threadID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := memTx{state: m.state}
	s, _ := tx.ActiveSolution(ctx, threadID, userID)
	return s != nil, nil
}

// Entry возвращает запись пользователя (для тестов и отладки).
func (m *MemoryStore) Entry(userID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.users[userID]
	return e, ok
}

// Solutions возвращает все решения пользователя в теме.
func (m *MemoryStore) Solutions(threadID, solverID string) []Solution {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Solution
	for _, s := range m.state.solutions {
		if s.ThreadID == threadID && s.SolverID == solverID {
			out = append(out, copySolution(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leaderboard — топ пользователей по очкам.
func (m *MemoryStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.state.users))
	for _, e := range m.state.users {
		if e.Points > 0 {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneEmpty удаляет пользователей с нулём очков.
func (m *MemoryStore) PruneEmpty(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.state.users {
		if e.Points == 0 {
			delete(m.state.users, id)
			n++
		}
	}
	return n, nil
}

type memTx struct {
	state memState
}

func (t *memTx) AddPoints(ctx context.Context, user platform.User, delta int) (int, error) {
	now := time.Now().UTC()
	e, ok := t.state.users[user.ID]
	if !ok {
		e = Entry{UserID: user.ID, CreatedAt: now}
	}
	if user.Name != "" {
		e.UserName = user.Name
	}
	e.Points += delta
	if e.Points < 0 {
		e.Points = 0
	}
	e.UpdatedAt = now
	t.state.users[user.ID] = e
	return e.Points, nil
}

func (t *memTx) DeleteEmptyUser(ctx context.Context, userID string) error {
	e, ok := t.state.users[userID]
	if !ok || e.Points != 0 {
		return nil
	}
	for _, s := range t.state.solutions {
		if s.SolverID == userID {
			return nil
		}
	}
	delete(t.state.users, userID)
	return nil
}

func (t *memTx) ActiveSolution(ctx context.Context, threadID, solverID string) (*Solution, error) {
	for _, s := range t.state.solutions {
		if s.ThreadID == threadID && s.SolverID == solverID && s.Active() {
			out := copySolution(s)
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) LastRevoked(ctx context.Context, threadID, solverID string) (*Solution, error) {
	var last *Solution
	for _, s := range t.state.solutions {
		if s.ThreadID != threadID || s.SolverID != solverID || s.Active() {
			continue
		}
		if last == nil || s.RevokedAt.After(*last.RevokedAt) ||
			(s.RevokedAt.Equal(*last.RevokedAt) && s.ID > last.ID) {
			c := copySolution(s)
			last = &c
		}
	}
	return last, nil
}

func (t *memTx) InsertSolution(ctx context.Context, s *Solution) error {
	t.state.nextID++
	s.ID = t.state.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	t.state.solutions[s.ID] = copySolution(*s)
	return nil
}

func (t *memTx) MarkRevoked(ctx context.Context, id int64, revokingCommentID string, at time.Time) error {
	s, ok := t.state.solutions[id]
	if !ok {
		return nil
	}
	s.RevokedByCommentID = &revokingCommentID
	s.RevokedAt = &at
	t.state.solutions[id] = s
	return nil
}

func (t *memTx) ClearRevoked(ctx context.Context, id int64) error {
	s, ok := t.state.solutions[id]
	if !ok {
		return nil
	}
	s.RevokedByCommentID = nil
	s.RevokedAt = nil
	t.state.solutions[id] = s
	return nil
}

func (t *memTx) DeleteSolution(ctx context.Context, id int64) error {
	delete(t.state.solutions, id)
	return nil
}

// copySolution копирует указатели, чтобы снимки состояния не делили память.
func copySolution(s Solution) Solution {
	if s.RevokedByCommentID != nil {
		v := *s.RevokedByCommentID
		s.RevokedByCommentID = &v
	}
	if s.RevokedAt != nil {
		v := *s.RevokedAt
		s.RevokedAt = &v
	}
	return s
}
