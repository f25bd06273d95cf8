package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rzbeall84/ask-rita/internal/billingperiod"
	"github.com/rzbeall84/ask-rita/internal/clock"
	gatedomain "github.com/rzbeall84/ask-rita/internal/gate/domain"
	"github.com/rzbeall84/ask-rita/internal/notifier"
	orgdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
	"github.com/rzbeall84/ask-rita/pkg/telemetry"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Catalog  *plan.Catalog
	SubSvc   subscriptiondomain.Service
	UsageSvc usagedomain.Service
	OrgSvc   orgdomain.Service
	Notifier notifier.Notifier
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	catalog  *plan.Catalog
	subSvc   subscriptiondomain.Service
	usageSvc usagedomain.Service
	orgSvc   orgdomain.Service
	notifier notifier.Notifier
	metrics  *telemetry.Metrics
}

func NewService(p ServiceParam) gatedomain.Service {
	return &Service{
		log:      p.Log.Named("gate.service"),
		clock:    p.Clock,
		catalog:  p.Catalog,
		subSvc:   p.SubSvc,
		usageSvc: p.UsageSvc,
		orgSvc:   p.OrgSvc,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// CheckAndConsume never returns an error: every failure path collapses into
// a denied Result so callers can't accidentally fail open on a store outage.
func (s *Service) CheckAndConsume(ctx context.Context, orgID snowflake.ID, role string, limitType gatedomain.LimitType) gatedomain.Result {
	started := time.Now()
	res := s.check(ctx, orgID, role, limitType)

	outcome := "denied"
	if res.Allowed {
		outcome = "allowed"
	}
	if res.Message == gatedomain.MsgStoreUnavailable {
		outcome = "failed"
	}
	s.metrics.ObserveGateDecision(string(limitType), outcome, time.Since(started).Seconds())
	return res
}

func (s *Service) check(ctx context.Context, orgID snowflake.ID, role string, limitType gatedomain.LimitType) gatedomain.Result {
	if orgID == 0 {
		return gatedomain.Result{Allowed: false, Message: gatedomain.MsgOrganizationNotFound}
	}
	if !limitType.Valid() {
		return gatedomain.Result{Allowed: false, Message: gatedomain.MsgUnknownLimitType}
	}

	now := s.clock.Now()

	sub, err := s.subSvc.GetByOrgID(ctx, orgID)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		s.log.Error("subscription lookup failed", zap.Int64("org_id", int64(orgID)), zap.Error(err))
		return gatedomain.Result{Allowed: false, Message: gatedomain.MsgStoreUnavailable}
	}

	decision := subscriptiondomain.Evaluate(sub, role, now)
	if !decision.Allowed {
		return gatedomain.Result{
			Allowed:      false,
			Message:      gatedomain.MsgSubscriptionRequired,
			NeedsUpgrade: decision.NeedsUpgrade,
		}
	}

	var planID plan.ID
	if sub != nil {
		planID = sub.PlanID
	}
	limits := s.catalog.LimitsFor(planID)

	switch limitType {
	case gatedomain.LimitQueries:
		return s.checkQueries(ctx, orgID, sub, limits, decision, now)
	default:
		return s.checkSeats(ctx, orgID, limits, decision)
	}
}

func (s *Service) checkQueries(
	ctx context.Context,
	orgID snowflake.ID,
	sub *subscriptiondomain.Subscription,
	limits plan.Limits,
	decision subscriptiondomain.AccessDecision,
	now time.Time,
) gatedomain.Result {
	period := billingperiod.Resolve(sub, now)

	if sub != nil && sub.UnlimitedUsage {
		// Quota bypass still records traffic for analytics, off the hot path.
		bg := context.WithoutCancel(ctx)
		go func() {
			if err := s.usageSvc.RecordUnmetered(bg, orgID, period); err != nil {
				s.log.Warn("unmetered record failed", zap.Int64("org_id", int64(orgID)), zap.Error(err))
			}
		}()
		return gatedomain.Result{Allowed: true, Unlimited: true}
	}

	res, consumed, err := s.usageSvc.Consume(ctx, orgID, period, limits.QueryLimit)
	if err != nil {
		s.log.Error("ledger consume failed", zap.Int64("org_id", int64(orgID)), zap.Error(err))
		return gatedomain.Result{Allowed: false, Message: gatedomain.MsgStoreUnavailable}
	}

	s.fireThresholds(ctx, orgID, period, res.Percentage)

	if !consumed {
		return gatedomain.Result{
			Allowed:      false,
			Message:      gatedomain.MsgQueryLimitReached,
			Usage:        res.NewUsage,
			Limit:        res.TotalLimit,
			Remaining:    0,
			Percentage:   res.Percentage,
			NeedsUpgrade: true,
		}
	}
	return gatedomain.Result{
		Allowed:      true,
		Usage:        res.NewUsage,
		Limit:        res.TotalLimit,
		Remaining:    res.Remaining,
		Percentage:   res.Percentage,
		NeedsUpgrade: decision.NeedsUpgrade,
	}
}

func (s *Service) checkSeats(
	ctx context.Context,
	orgID snowflake.ID,
	limits plan.Limits,
	decision subscriptiondomain.AccessDecision,
) gatedomain.Result {
	if limits.UnboundedSeats() {
		return gatedomain.Result{Allowed: true, Unlimited: true, NeedsUpgrade: decision.NeedsUpgrade}
	}

	seats, err := s.orgSvc.SeatUsage(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
			return gatedomain.Result{Allowed: false, Message: gatedomain.MsgOrganizationNotFound}
		}
		s.log.Error("seat count failed", zap.Int64("org_id", int64(orgID)), zap.Error(err))
		return gatedomain.Result{Allowed: false, Message: gatedomain.MsgStoreUnavailable}
	}

	percentage := 0
	if limits.SeatLimit > 0 {
		percentage = 100 * seats / limits.SeatLimit
		if percentage > 100 {
			percentage = 100
		}
	}

	if seats >= limits.SeatLimit {
		return gatedomain.Result{
			Allowed:      false,
			Message:      gatedomain.MsgSeatLimitReached,
			Usage:        seats,
			Limit:        limits.SeatLimit,
			Remaining:    0,
			Percentage:   percentage,
			NeedsUpgrade: true,
		}
	}
	return gatedomain.Result{
		Allowed:      true,
		Usage:        seats,
		Limit:        limits.SeatLimit,
		Remaining:    limits.SeatLimit - seats,
		Percentage:   percentage,
		NeedsUpgrade: decision.NeedsUpgrade,
	}
}

// fireThresholds claims the 80% and 100% watermarks when crossed. The
// ledger's IS NULL guard makes each fire at most once per period, no matter
// how many gate calls observe the crossing.
func (s *Service) fireThresholds(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, percentage int) {
	for _, threshold := range []int{usagedomain.Threshold80, usagedomain.Threshold100} {
		if percentage < threshold {
			continue
		}
		won, err := s.usageSvc.MarkNotified(ctx, orgID, period, threshold)
		if err != nil {
			s.log.Warn("threshold watermark claim failed",
				zap.Int64("org_id", int64(orgID)),
				zap.Int("threshold", threshold),
				zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		s.notifier.Record(ctx, notifier.Event{
			Kind:      notifier.KindUsageThreshold,
			OrgID:     orgID,
			Threshold: threshold,
			Message:   fmt.Sprintf("query usage reached %d%% for period %s", threshold, period.Key),
		})
		s.metrics.IncThresholdNotice(fmt.Sprintf("%d", threshold))
	}
}
