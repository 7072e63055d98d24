package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"serotonyl.ru/points-bot/internal/features/ledger"
	"serotonyl.ru/points-bot/internal/features/levels"
	"serotonyl.ru/points-bot/internal/platform"
)

type captureNotifier struct {
	texts []string
}

func (n *captureNotifier) Notify(ctx context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

var table = []levels.Level{{Name: "Helper", Threshold: 5}, {Name: "Trusted", Threshold: 15}}

func award(t *testing.T, svc *ledger.Service, user platform.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Award(context.Background(), user, ledger.AwardParams{
			ThreadID:              fmt.Sprintf("%s-%d", user.ID, i),
			SolvingCommentID:      "s",
			ConfirmationCommentID: "c",
			Confirmer:             platform.User{ID: "op", Name: "op"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestPostLeaderboard(t *testing.T) {
	svc := ledger.NewService(ledger.NewMemoryStore())
	award(t, svc, platform.User{ID: "1", Name: "alice"}, 6)
	award(t, svc, platform.User{ID: "2", Name: "bob"}, 2)
	award(t, svc, platform.User{ID: "3", Name: "carol"}, 1)

	n := &captureNotifier{}
	s := NewScheduler(svc, n, Options{Timezone: "UTC", LeaderboardSize: 2, Levels: table})
	s.PostLeaderboard(context.Background())

	if len(n.texts) != 1 {
		t.Fatalf("notifications = %d, want 1", len(n.texts))
	}
	text := n.texts[0]
	for _, want := range []string{"1. alice — 6 очков (Helper)", "2. bob — 2 очка"} {
		if !strings.Contains(text, want) {
			t.Errorf("leaderboard missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "carol") {
		t.Errorf("leaderboard longer than limit:\n%s", text)
	}
}

func TestPruneRemovesZeroPointUsersKeepingHistory(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store)
	alice := platform.User{ID: "1", Name: "alice"}
	bob := platform.User{ID: "2", Name: "bob"}
	award(t, svc, alice, 1)
	award(t, svc, bob, 2)
	// Очко alice отозвано: запись с нулём, но решение в истории
	if _, err := svc.Revoke(ctx, alice, "1-0", "r"); err != nil {
		t.Fatal(err)
	}

	NewScheduler(svc, &captureNotifier{}, Options{}).Prune(ctx)

	if _, ok := store.Entry(alice.ID); ok {
		t.Error("zero-point user with revoked history was not pruned")
	}
	if e, ok := store.Entry(bob.ID); !ok || e.Points != 2 {
		t.Errorf("bob = %+v, %v, want 2 points kept", e, ok)
	}
	if sols := store.Solutions("1-0", alice.ID); len(sols) != 1 || sols[0].Active() {
		t.Errorf("revoked solution history = %+v, want one revoked record", sols)
	}
}

func TestFormatLeaderboardEmpty(t *testing.T) {
	if got := FormatLeaderboard(nil, table); got != "Таблица лидеров пока пуста." {
		t.Errorf("got %q", got)
	}
}

func TestFormatLeaderboardFallsBackToID(t *testing.T) {
	got := FormatLeaderboard([]ledger.Entry{{UserID: "42", Points: 1}}, nil)
	if got != "Таблица лидеров:\n1. 42 — 1 очко" {
		t.Errorf("got %q", got)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	svc := ledger.NewService(ledger.NewMemoryStore())
	s := NewScheduler(svc, &captureNotifier{}, Options{PruneSpec: "every night"})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartStop(t *testing.T) {
	svc := ledger.NewService(ledger.NewMemoryStore())
	s := NewScheduler(svc, &captureNotifier{}, Options{
		Timezone:        "Not/AZone",
		PruneSpec:       "0 4 * * *",
		LeaderboardSpec: "0 12 * * 1",
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}
