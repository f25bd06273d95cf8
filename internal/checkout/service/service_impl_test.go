package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	checkoutdomain "github.com/rzbeall84/ask-rita/internal/checkout/domain"
	"github.com/rzbeall84/ask-rita/internal/config"
	orgdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
)

type stubOrgSvc struct {
	err error
}

func (s *stubOrgSvc) Create(ctx context.Context, req orgdomain.CreateOrganizationRequest) (*orgdomain.Organization, error) {
	return nil, nil
}

func (s *stubOrgSvc) GetByID(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &orgdomain.Organization{ID: orgID, Name: "acme", CreatedAt: time.Now()}, nil
}

func (s *stubOrgSvc) SeatUsage(ctx context.Context, orgID snowflake.ID) (int, error) {
	return 0, nil
}

func (s *stubOrgSvc) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	return "owner", nil
}

func (s *stubOrgSvc) CreateInvite(ctx context.Context, req orgdomain.CreateInviteRequest) (*orgdomain.OrganizationInvite, error) {
	return nil, nil
}

func setupCheckout(t *testing.T, orgSvc orgdomain.Service) checkoutdomain.Service {
	t.Helper()
	holder := config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalogConfig())
	cfg := config.Config{
		Checkout: config.CheckoutConfig{
			CheckoutBaseURL: "https://billing.example.com/checkout",
			PortalBaseURL:   "https://billing.example.com/portal",
			SuccessURL:      "https://app.example.com/billing/success",
			CancelURL:       "https://app.example.com/billing",
		},
	}
	return NewService(ServiceParam{
		Log:      zap.NewNop(),
		Catalog:  plan.NewCatalog(holder),
		OrgSvc:   orgSvc,
		Provider: NewHostedProvider(cfg),
	})
}

func TestCheckoutSessionForPlan(t *testing.T) {
	svc := setupCheckout(t, &stubOrgSvc{})

	session, err := svc.CreateCheckoutSession(context.Background(), checkoutdomain.SessionRequest{
		OrgID:  snowflake.ID(7),
		PlanID: plan.Starter,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.PriceID != "price_starter_monthly" {
		t.Fatalf("expected starter price, got %s", session.PriceID)
	}
	if !strings.HasPrefix(session.URL, "https://billing.example.com/checkout?") {
		t.Fatalf("unexpected checkout url: %s", session.URL)
	}
	if !strings.Contains(session.URL, "price=price_starter_monthly") {
		t.Fatalf("expected price in url, got %s", session.URL)
	}
}

func TestCheckoutSessionForPack(t *testing.T) {
	svc := setupCheckout(t, &stubOrgSvc{})

	session, err := svc.CreateCheckoutSession(context.Background(), checkoutdomain.SessionRequest{
		OrgID:  snowflake.ID(7),
		PackID: "pack_1000",
	})
	if err != nil {
		t.Fatalf("create pack session: %v", err)
	}
	if session.PriceID != "price_pack_1000" {
		t.Fatalf("expected pack price, got %s", session.PriceID)
	}
}

func TestCheckoutRejectsFreePlan(t *testing.T) {
	svc := setupCheckout(t, &stubOrgSvc{})

	_, err := svc.CreateCheckoutSession(context.Background(), checkoutdomain.SessionRequest{
		OrgID:  snowflake.ID(7),
		PlanID: plan.Free,
	})
	if !errors.Is(err, checkoutdomain.ErrPlanNotPurchasable) {
		t.Fatalf("expected ErrPlanNotPurchasable, got %v", err)
	}

	_, err = svc.CreateCheckoutSession(context.Background(), checkoutdomain.SessionRequest{
		OrgID: snowflake.ID(7),
	})
	if !errors.Is(err, checkoutdomain.ErrNothingToPurchase) {
		t.Fatalf("expected ErrNothingToPurchase, got %v", err)
	}
}

func TestCheckoutRejectsUnknownOrganization(t *testing.T) {
	svc := setupCheckout(t, &stubOrgSvc{err: orgdomain.ErrOrganizationNotFound})

	_, err := svc.CreateCheckoutSession(context.Background(), checkoutdomain.SessionRequest{
		OrgID:  snowflake.ID(404),
		PlanID: plan.Pro,
	})
	if !errors.Is(err, orgdomain.ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
}

func TestPortalSession(t *testing.T) {
	svc := setupCheckout(t, &stubOrgSvc{})

	session, err := svc.CreatePortalSession(context.Background(), snowflake.ID(7))
	if err != nil {
		t.Fatalf("create portal session: %v", err)
	}
	if !strings.HasPrefix(session.URL, "https://billing.example.com/portal?") {
		t.Fatalf("unexpected portal url: %s", session.URL)
	}
}
