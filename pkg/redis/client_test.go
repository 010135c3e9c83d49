package redis

import (
	"testing"

	"github.com/jmorales/caterflow-backend/pkg/config"
)

func configRedis(url string) config.RedisConfig {
	return config.RedisConfig{URL: url}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}

	if got := c.IdempotencyKey("stripe-webhook", "evt_123"); got != "cf:idempotency:stripe-webhook:evt_123" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.LockKey("worker"); got != "cf:lock:worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
	if got := c.IdempotencyKey(" ", "evt_123"); got != "cf:idempotency:evt_123" {
		t.Fatalf("blank scope should be dropped, got %q", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configRedis("")); err == nil {
		t.Fatal("expected error when neither URL nor address is set")
	}
	opts, err := optionsFromConfig(configRedis("redis://localhost:6379/2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 {
		t.Fatalf("expected DB 2 from URL, got %d", opts.DB)
	}
}
