package plan

import (
	"testing"

	"github.com/rzbeall84/ask-rita/internal/config"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	return NewCatalog(config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalogConfig()))
}

func TestLimitsForKnownPlan(t *testing.T) {
	catalog := testCatalog(t)

	limits := catalog.LimitsFor(Starter)
	if limits.Plan != Starter {
		t.Fatalf("expected starter, got %s", limits.Plan)
	}
	if limits.QueryLimit != 1500 {
		t.Fatalf("expected starter query limit 1500, got %d", limits.QueryLimit)
	}
}

func TestLimitsForUnknownPlanFallsBackToFree(t *testing.T) {
	catalog := testCatalog(t)

	for _, id := range []ID{"", "gold", "STARTER "} {
		limits := catalog.LimitsFor(id)
		if id == "STARTER " {
			if limits.Plan != Starter {
				t.Fatalf("expected normalized starter, got %s", limits.Plan)
			}
			continue
		}
		if limits.Plan != Free {
			t.Fatalf("expected free fallback for %q, got %s", id, limits.Plan)
		}
	}
}

func TestEnterpriseSeatsUnbounded(t *testing.T) {
	catalog := testCatalog(t)

	limits := catalog.LimitsFor(Enterprise)
	if !limits.UnboundedSeats() {
		t.Fatalf("expected unbounded seats for enterprise, got %d", limits.SeatLimit)
	}
}

func TestPlanForPriceID(t *testing.T) {
	catalog := testCatalog(t)

	id, err := catalog.PlanForPriceID("price_pro_monthly")
	if err != nil {
		t.Fatalf("plan for price: %v", err)
	}
	if id != Pro {
		t.Fatalf("expected pro, got %s", id)
	}

	if _, err := catalog.PlanForPriceID("price_unknown"); err != ErrUnknownPriceID {
		t.Fatalf("expected ErrUnknownPriceID, got %v", err)
	}
	if _, err := catalog.PlanForPriceID(""); err != ErrUnknownPriceID {
		t.Fatalf("expected ErrUnknownPriceID for empty price, got %v", err)
	}
}

func TestPackForPriceID(t *testing.T) {
	catalog := testCatalog(t)

	pack, err := catalog.PackForPriceID("price_pack_1000")
	if err != nil {
		t.Fatalf("pack for price: %v", err)
	}
	if pack.QueryCredits != 1000 {
		t.Fatalf("expected 1000 credits, got %d", pack.QueryCredits)
	}

	if _, err := catalog.PackForPriceID("price_nope"); err != ErrUnknownPack {
		t.Fatalf("expected ErrUnknownPack, got %v", err)
	}
}

func TestFreePlanNotPurchasable(t *testing.T) {
	catalog := testCatalog(t)

	if catalog.Purchasable(Free) {
		t.Fatal("free plan must not be purchasable")
	}
	if !catalog.Purchasable(Starter) {
		t.Fatal("starter plan should be purchasable")
	}
}
