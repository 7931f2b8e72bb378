package utils

import (
	"context"
	"testing"
	"time"
)

func TestAcquireConcurrencyCap_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestSlotScriptsInitialized(t *testing.T) {
	if slotAcquireScript == nil || slotReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
