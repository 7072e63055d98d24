package middleware

import (
	"testing"
	"time"

	"serotonyl.ru/points-bot/internal/platform"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Hour)
	rl.now = func() time.Time { return now }

	if !rl.Allow("t1") || !rl.Allow("t1") {
		t.Fatal("first two events must pass")
	}
	if rl.Allow("t1") {
		t.Fatal("third event within window must be dropped")
	}
	if !rl.Allow("t2") {
		t.Fatal("keys are independent")
	}

	now = now.Add(time.Hour + time.Second)
	if !rl.Allow("t1") {
		t.Fatal("window expired, event must pass")
	}
	if _, ok := rl.requests["t2"]; ok {
		t.Fatal("stale key not pruned")
	}
}

func TestCommentLoggerFields(t *testing.T) {
	c := &platform.Comment{ID: "c1", ThreadID: "t1", Author: platform.User{ID: "u1"}}
	a, b := CommentLogger(c), CommentLogger(c)

	if a.Data["comment_id"] != "c1" || a.Data["thread_id"] != "t1" || a.Data["user_id"] != "u1" {
		t.Fatalf("fields = %v", a.Data)
	}
	if a.Data["trace_id"] == "" || a.Data["trace_id"] == b.Data["trace_id"] {
		t.Fatalf("trace ids: %v / %v", a.Data["trace_id"], b.Data["trace_id"])
	}
}

func TestRecoverFromPanic(t *testing.T) {
	func() {
		defer RecoverFromPanic(nil)
		panic("boom")
	}()
}
