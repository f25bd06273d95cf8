package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/cache"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	"github.com/rzbeall84/ask-rita/internal/subscription/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     repository.Repository
	SubCache cache.SubscriptionCache `optional:"true"`
}

type Service struct {
	log *zap.Logger

	genID    *snowflake.Node
	repo     repository.Repository
	subCache cache.SubscriptionCache
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		subCache: p.SubCache,
	}
}

func (s *Service) GetByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	if s.subCache != nil {
		if cached, ok := s.subCache.Get(orgID); ok {
			return cached, nil
		}
	}
	sub, err := s.repo.FindByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if s.subCache != nil && sub != nil {
		s.subCache.Set(orgID, sub)
	}
	return sub, nil
}

func (s *Service) EnsureDefault(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	now := time.Now().UTC()
	row := &subscriptiondomain.Subscription{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Status:    subscriptiondomain.StatusInactive,
		PlanID:    plan.Free,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertIfAbsent(ctx, row); err != nil {
		return nil, err
	}
	// Re-read so a concurrent creator's row wins consistently.
	return s.repo.FindByOrgID(ctx, orgID)
}

func (s *Service) Activate(ctx context.Context, req subscriptiondomain.ActivateRequest) error {
	if req.OrgID == 0 {
		return subscriptiondomain.ErrInvalidOrganization
	}
	status := req.Status
	if status == "" {
		status = subscriptiondomain.StatusActive
	}
	if !status.Valid() {
		return subscriptiondomain.ErrInvalidStatus
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return subscriptiondomain.ErrInvalidPeriod
	}

	now := time.Now().UTC()
	start := req.PeriodStart.UTC()
	end := req.PeriodEnd.UTC()
	row := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		OrgID:              req.OrgID,
		Status:             status,
		PlanID:             req.Plan,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		GracePeriodEnd:     nil, // Upsert keeps the stored window for grace-bearing statuses
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return err
	}
	s.invalidate(req.OrgID)
	return nil
}

func (s *Service) MarkCanceled(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error {
	if err := s.repo.SetStatusWithGrace(ctx, orgID, subscriptiondomain.StatusCanceled, graceEnd.UTC()); err != nil {
		return err
	}
	s.invalidate(orgID)
	return nil
}

func (s *Service) MarkPastDue(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error {
	if err := s.repo.SetStatusWithGrace(ctx, orgID, subscriptiondomain.StatusPastDue, graceEnd.UTC()); err != nil {
		return err
	}
	s.invalidate(orgID)
	return nil
}

func (s *Service) SetUnlimitedUsage(ctx context.Context, orgID snowflake.ID, unlimited bool) error {
	if err := s.repo.SetUnlimitedUsage(ctx, orgID, unlimited); err != nil {
		return err
	}
	s.invalidate(orgID)
	return nil
}

func (s *Service) CountInGrace(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.CountInGrace(ctx, now.UTC())
}

func (s *Service) invalidate(orgID snowflake.ID) {
	if s.subCache != nil {
		s.subCache.Invalidate(orgID)
	}
}
