package billingperiod

import (
	"testing"
	"time"

	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

func TestResolveActiveSubscriptionUsesPeriodVerbatim(t *testing.T) {
	start := time.Date(2026, time.March, 15, 8, 30, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	sub := &subscriptiondomain.Subscription{
		Status:             subscriptiondomain.StatusActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}

	period := Resolve(sub, time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC))
	if !period.Start.Equal(start) || !period.End.Equal(end) {
		t.Fatalf("expected verbatim bounds, got %v .. %v", period.Start, period.End)
	}
	if period.Key != "2026-03-15" {
		t.Fatalf("expected key 2026-03-15, got %s", period.Key)
	}
}

func TestResolveFallsBackToCalendarMonth(t *testing.T) {
	now := time.Date(2026, time.February, 17, 14, 5, 0, 0, time.UTC)

	for _, sub := range []*subscriptiondomain.Subscription{
		nil,
		{Status: subscriptiondomain.StatusInactive},
		{Status: subscriptiondomain.StatusCanceled},
		{Status: subscriptiondomain.StatusActive}, // no bounds set
	} {
		period := Resolve(sub, now)
		if period.Key != "2026-02-01" {
			t.Fatalf("expected key 2026-02-01, got %s", period.Key)
		}
		if period.Start.Day() != 1 || period.Start.Hour() != 0 {
			t.Fatalf("expected first of month, got %v", period.Start)
		}
		if period.End.Month() != time.February || period.End.Day() != 28 {
			t.Fatalf("expected last of February, got %v", period.End)
		}
	}
}

func TestResolveFallbackIsIdempotentWithinMonth(t *testing.T) {
	first := Resolve(nil, time.Date(2026, time.June, 1, 0, 0, 1, 0, time.UTC))
	second := Resolve(nil, time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC))

	if first.Key != second.Key {
		t.Fatalf("keys fragmented within month: %s vs %s", first.Key, second.Key)
	}
}
