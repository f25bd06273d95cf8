package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/rzbeall84/ask-rita/internal/config"
)

func setupLimiter(t *testing.T) *RequestLimiter {
	t.Helper()
	mr := miniredis.RunT(t)

	limiter, err := NewRequestLimiter(config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:      true,
			RedisAddr:    mr.Addr(),
			WebhookRate:  1,
			WebhookBurst: 2,
			GateRate:     1,
			GateBurst:    3,
		},
	})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if limiter == nil {
		t.Fatal("expected an enabled limiter")
	}
	return limiter
}

func TestWebhookBucketExhausts(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowWebhook(ctx, "42")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("expected request %d within burst to pass", i)
		}
	}

	res, err := limiter.AllowWebhook(ctx, "42")
	if err != nil {
		t.Fatalf("allow past burst: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected the bucket to be empty")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", res.RetryAfter)
	}
}

func TestBucketsAreScopedPerOrg(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := limiter.AllowWebhook(ctx, "1"); !res.Allowed {
			t.Fatalf("org 1 request %d should pass", i)
		}
	}
	if res, _ := limiter.AllowWebhook(ctx, "2"); !res.Allowed {
		t.Fatal("a different org must have its own bucket")
	}
}

func TestEventLockSerializesDeliveries(t *testing.T) {
	limiter := setupLimiter(t)
	ctx := context.Background()

	token, ok, err := limiter.LockEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !ok {
		t.Fatal("expected first lock to succeed")
	}

	_, ok, err = limiter.LockEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if ok {
		t.Fatal("expected concurrent delivery to be locked out")
	}

	limiter.ReleaseEvent(ctx, "evt_1", token)
	_, ok, err = limiter.LockEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	if !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewRequestLimiter(config.Config{})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if limiter != nil {
		t.Fatal("expected nil limiter when disabled")
	}

	res, err := limiter.AllowGate(context.Background(), "1")
	if err != nil || !res.Allowed {
		t.Fatalf("nil limiter must allow, got %+v err %v", res, err)
	}
	if _, ok, _ := limiter.LockEvent(context.Background(), "evt"); !ok {
		t.Fatal("nil limiter must grant locks")
	}
}
