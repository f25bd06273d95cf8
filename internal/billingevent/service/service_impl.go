package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	billingeventdomain "github.com/rzbeall84/ask-rita/internal/billingevent/domain"
	"github.com/rzbeall84/ask-rita/internal/billingperiod"
	"github.com/rzbeall84/ask-rita/internal/clock"
	"github.com/rzbeall84/ask-rita/internal/notifier"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
	"github.com/rzbeall84/ask-rita/pkg/db/pagination"
	"github.com/rzbeall84/ask-rita/pkg/telemetry"
)

const (
	maxApplyAttempts = 3
	baseRetryBackoff = 50 * time.Millisecond
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Catalog  *plan.Catalog
	SubSvc   subscriptiondomain.Service
	UsageSvc usagedomain.Service
	Notifier notifier.Notifier
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	catalog  *plan.Catalog
	subSvc   subscriptiondomain.Service
	usageSvc usagedomain.Service
	notifier notifier.Notifier
	metrics  *telemetry.Metrics
}

func NewService(p ServiceParam) billingeventdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingevent.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		catalog:  p.Catalog,
		subSvc:   p.SubSvc,
		usageSvc: p.UsageSvc,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// Ingest never skips the audit append: whatever the transition does, one
// EventLog row records the delivery and its outcome.
func (s *Service) Ingest(ctx context.Context, ev billingeventdomain.Event) error {
	outcome := billingeventdomain.OutcomeSuccess
	var applyErr error

	switch {
	case s.isDuplicate(ctx, ev):
		outcome = billingeventdomain.OutcomeDuplicate
	default:
		applyErr = s.applyWithRetry(ctx, ev)
		if applyErr != nil {
			outcome = billingeventdomain.OutcomeError
		}
	}

	s.appendLog(ctx, ev, outcome, applyErr)
	s.metrics.IncBillingEvent(string(ev.Type), outcome)
	return applyErr
}

func (s *Service) ListLog(ctx context.Context, orgID snowflake.ID, p pagination.Pagination) (*billingeventdomain.LogPage, error) {
	size := p.PageSize
	if size <= 0 {
		size = 10
	}

	stmt := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("id DESC").
		Limit(size + 1)
	if p.PageToken != "" {
		cursor, err := pagination.DecodeCursor(p.PageToken)
		if err != nil {
			return nil, billingeventdomain.ErrMalformedEvent
		}
		stmt = stmt.Where("id < ?", cursor.ID)
	}

	var rows []*billingeventdomain.EventLog
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}

	info := pagination.BuildCursorPageInfo(rows, int32(size), func(row *billingeventdomain.EventLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: row.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(rows) > size {
		rows = rows[:size]
	}
	return &billingeventdomain.LogPage{Events: rows, PageInfo: *info}, nil
}

// isDuplicate reports whether this provider delivery was already applied.
// Events without a provider ID are applied unconditionally; every transition
// below is idempotent on replay anyway, except credit grants, which always
// carry one.
func (s *Service) isDuplicate(ctx context.Context, ev billingeventdomain.Event) bool {
	if ev.ProviderEventID == "" {
		return false
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&billingeventdomain.EventLog{}).
		Where("provider_event_id = ? AND outcome = ?", ev.ProviderEventID, billingeventdomain.OutcomeSuccess).
		Count(&count).Error
	if err != nil {
		s.log.Warn("duplicate check failed", zap.String("provider_event_id", ev.ProviderEventID), zap.Error(err))
		return false
	}
	return count > 0
}

func (s *Service) applyWithRetry(ctx context.Context, ev billingeventdomain.Event) error {
	var err error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseRetryBackoff << (attempt - 1)):
			}
		}
		err = s.apply(ctx, ev)
		if err == nil || isPermanent(err) {
			return err
		}
		s.log.Warn("transient apply failure, retrying",
			zap.String("event_type", string(ev.Type)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}

func (s *Service) apply(ctx context.Context, ev billingeventdomain.Event) error {
	if !ev.Type.Valid() {
		return billingeventdomain.ErrUnknownEventType
	}
	if ev.OrgID == 0 {
		return billingeventdomain.ErrMalformedEvent
	}

	now := s.clock.Now()
	switch ev.Type {
	case billingeventdomain.EventSubscriptionActivated, billingeventdomain.EventSubscriptionUpdated:
		return s.applyConfirmation(ctx, ev, "")
	case billingeventdomain.EventPaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, ev)
	case billingeventdomain.EventSubscriptionCanceled:
		return s.applyGraceTransition(ctx, ev.OrgID, subscriptiondomain.StatusCanceled, now)
	case billingeventdomain.EventPaymentFailed:
		return s.applyGraceTransition(ctx, ev.OrgID, subscriptiondomain.StatusPastDue, now)
	case billingeventdomain.EventOveragePurchased:
		return s.applyOveragePurchase(ctx, ev, now)
	}
	return billingeventdomain.ErrUnknownEventType
}

// applyConfirmation handles activated/updated events: a plan-bearing upsert.
// An open grace window survives unless the new status leaves the
// grace-bearing states.
func (s *Service) applyConfirmation(ctx context.Context, ev billingeventdomain.Event, fallbackPlan plan.ID) error {
	planID := fallbackPlan
	if ev.PriceID != "" {
		mapped, err := s.catalog.PlanForPriceID(ev.PriceID)
		if err != nil {
			return err
		}
		planID = mapped
	}
	if planID == "" {
		return billingeventdomain.ErrMalformedEvent
	}

	start, end, err := periodFromEpoch(ev.PeriodStart, ev.PeriodEnd)
	if err != nil {
		return err
	}
	return s.subSvc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OrgID:       ev.OrgID,
		Status:      subscriptiondomain.Status(ev.Status),
		Plan:        planID,
		PeriodStart: start,
		PeriodEnd:   end,
	})
}

// applyPaymentSucceeded reconfirms the subscription on its new billing
// window. The fresh period key starts the next ledger row at zero by
// itself, so no explicit usage reset happens here.
func (s *Service) applyPaymentSucceeded(ctx context.Context, ev billingeventdomain.Event) error {
	fallback := plan.Free
	sub, err := s.subSvc.GetByOrgID(ctx, ev.OrgID)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return err
	}
	if sub != nil && sub.PlanID != "" {
		fallback = sub.PlanID
	}

	ev.Status = string(subscriptiondomain.StatusActive)
	return s.applyConfirmation(ctx, ev, fallback)
}

func (s *Service) applyGraceTransition(ctx context.Context, orgID snowflake.ID, status subscriptiondomain.Status, now time.Time) error {
	graceEnd := now.Add(s.catalog.GracePeriod())

	var err error
	if status == subscriptiondomain.StatusCanceled {
		err = s.subSvc.MarkCanceled(ctx, orgID, graceEnd)
	} else {
		err = s.subSvc.MarkPastDue(ctx, orgID, graceEnd)
	}
	if err != nil {
		return err
	}

	s.notifier.Record(ctx, notifier.Event{
		Kind:    notifier.KindGraceOpened,
		OrgID:   orgID,
		Message: "access preserved until " + graceEnd.Format(time.RFC3339),
		At:      now,
	})
	s.refreshGraceGauge(ctx, now)
	return nil
}

func (s *Service) applyOveragePurchase(ctx context.Context, ev billingeventdomain.Event, now time.Time) error {
	pack, err := s.catalog.PackForPriceID(ev.PriceID)
	if err != nil {
		return err
	}

	sub, err := s.subSvc.GetByOrgID(ctx, ev.OrgID)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return err
	}
	period := billingperiod.Resolve(sub, now)
	return s.usageSvc.AddExtraCredits(ctx, ev.OrgID, period, pack.QueryCredits)
}

func (s *Service) refreshGraceGauge(ctx context.Context, now time.Time) {
	count, err := s.subSvc.CountInGrace(ctx, now)
	if err != nil {
		s.log.Warn("grace window count failed", zap.Error(err))
		return
	}
	s.metrics.SetGraceWindowsOpen(float64(count))
}

func (s *Service) appendLog(ctx context.Context, ev billingeventdomain.Event, outcome string, applyErr error) {
	row := &billingeventdomain.EventLog{
		ID:              s.genID.Generate(),
		ProviderEventID: ev.ProviderEventID,
		OrgID:           ev.OrgID,
		EventType:       ev.Type,
		Payload: datatypes.JSONMap{
			"provider_event_id": ev.ProviderEventID,
			"org_id":            ev.OrgID.String(),
			"user_id":           ev.UserID,
			"price_id":          ev.PriceID,
			"status":            ev.Status,
			"period_start":      ev.PeriodStart,
			"period_end":        ev.PeriodEnd,
		},
		Outcome:   outcome,
		CreatedAt: s.clock.Now(),
	}
	if applyErr != nil {
		row.ErrorText = applyErr.Error()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.log.Error("event log append failed",
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
	}
}

func periodFromEpoch(start, end int64) (time.Time, time.Time, error) {
	if start <= 0 || end <= 0 || end <= start {
		return time.Time{}, time.Time{}, billingeventdomain.ErrMalformedEvent
	}
	return time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC(), nil
}

// isPermanent reports whether retrying the apply cannot help.
func isPermanent(err error) bool {
	for _, sentinel := range []error{
		billingeventdomain.ErrMalformedEvent,
		billingeventdomain.ErrUnknownEventType,
		plan.ErrUnknownPriceID,
		plan.ErrUnknownPack,
		subscriptiondomain.ErrInvalidOrganization,
		subscriptiondomain.ErrInvalidStatus,
		subscriptiondomain.ErrInvalidPeriod,
		subscriptiondomain.ErrSubscriptionNotFound,
		usagedomain.ErrInvalidOrganization,
		usagedomain.ErrInvalidPeriod,
		usagedomain.ErrInvalidCredits,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
