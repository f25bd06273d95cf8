package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/rzbeall84/ask-rita/internal/checkout/domain"
	"github.com/rzbeall84/ask-rita/internal/config"
	orgdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
	"github.com/rzbeall84/ask-rita/pkg/telemetry"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	Catalog  *plan.Catalog
	OrgSvc   orgdomain.Service
	Provider checkoutdomain.Provider
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	catalog  *plan.Catalog
	orgSvc   orgdomain.Service
	provider checkoutdomain.Provider
	metrics  *telemetry.Metrics
}

func NewService(p ServiceParam) checkoutdomain.Service {
	return &Service{
		log:      p.Log.Named("checkout.service"),
		catalog:  p.Catalog,
		orgSvc:   p.OrgSvc,
		provider: p.Provider,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateCheckoutSession(ctx context.Context, req checkoutdomain.SessionRequest) (*checkoutdomain.Session, error) {
	if _, err := s.orgSvc.GetByID(ctx, req.OrgID); err != nil {
		s.metrics.IncCheckoutValidation("org_rejected")
		return nil, err
	}

	priceID, err := s.resolvePrice(req)
	if err != nil {
		s.metrics.IncCheckoutValidation("rejected")
		return nil, err
	}

	pageURL, err := s.provider.CreateCheckoutSession(ctx, checkoutdomain.ProviderParams{
		OrgID:   req.OrgID,
		PriceID: priceID,
	})
	if err != nil {
		s.metrics.IncCheckoutValidation("provider_failed")
		s.log.Error("checkout session creation failed",
			zap.Int64("org_id", int64(req.OrgID)),
			zap.String("price_id", priceID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", checkoutdomain.ErrProviderFailure, err)
	}

	s.metrics.IncCheckoutValidation("accepted")
	return &checkoutdomain.Session{URL: pageURL, PriceID: priceID}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, orgID snowflake.ID) (*checkoutdomain.Session, error) {
	if _, err := s.orgSvc.GetByID(ctx, orgID); err != nil {
		s.metrics.IncCheckoutValidation("org_rejected")
		return nil, err
	}
	pageURL, err := s.provider.CreatePortalSession(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checkoutdomain.ErrProviderFailure, err)
	}
	return &checkoutdomain.Session{URL: pageURL}, nil
}

// resolvePrice maps the purchase target to a provider price ID. Plans must
// be purchasable (the free tier never is); packs must exist in the catalog.
func (s *Service) resolvePrice(req checkoutdomain.SessionRequest) (string, error) {
	switch {
	case req.PackID != "":
		pack, err := s.catalog.PackByID(req.PackID)
		if err != nil {
			return "", err
		}
		return pack.PriceID, nil
	case req.PlanID != "":
		if !s.catalog.Purchasable(req.PlanID) {
			return "", checkoutdomain.ErrPlanNotPurchasable
		}
		priceID, err := s.catalog.PriceIDFor(req.PlanID)
		if err != nil {
			return "", checkoutdomain.ErrPlanNotPurchasable
		}
		return priceID, nil
	default:
		return "", checkoutdomain.ErrNothingToPurchase
	}
}

// hostedProvider builds session URLs from configured hosted-page bases. It
// stands in for the real billing provider client at this boundary.
type hostedProvider struct {
	cfg config.CheckoutConfig
}

func NewHostedProvider(cfg config.Config) checkoutdomain.Provider {
	return &hostedProvider{cfg: cfg.Checkout}
}

func (p *hostedProvider) CreateCheckoutSession(_ context.Context, params checkoutdomain.ProviderParams) (string, error) {
	if p.cfg.CheckoutBaseURL == "" {
		return "", checkoutdomain.ErrProviderFailure
	}
	q := url.Values{}
	q.Set("org", params.OrgID.String())
	q.Set("price", params.PriceID)
	if p.cfg.SuccessURL != "" {
		q.Set("success_url", p.cfg.SuccessURL)
	}
	if p.cfg.CancelURL != "" {
		q.Set("cancel_url", p.cfg.CancelURL)
	}
	return p.cfg.CheckoutBaseURL + "?" + q.Encode(), nil
}

func (p *hostedProvider) CreatePortalSession(_ context.Context, orgID snowflake.ID) (string, error) {
	if p.cfg.PortalBaseURL == "" {
		return "", checkoutdomain.ErrProviderFailure
	}
	q := url.Values{}
	q.Set("org", orgID.String())
	return p.cfg.PortalBaseURL + "?" + q.Encode(), nil
}
