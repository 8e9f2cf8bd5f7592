package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session tests need a live redis; skipped unless TEST_REDIS_ADDR is set.
func TestSessionSetGetDelete(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis session test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()

	clinicianID := uint(12345)
	token := "test-session-token"

	if err := SetSession(ctx, rdb, clinicianID, token, time.Minute); err != nil {
		t.Fatalf("set session: %v", err)
	}
	got, err := GetSession(ctx, rdb, clinicianID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != token {
		t.Errorf("expected token %q, got %q", token, got)
	}
	if err := DeleteSession(ctx, rdb, clinicianID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := GetSession(ctx, rdb, clinicianID); err == nil {
		t.Errorf("expected error after delete")
	}
}
