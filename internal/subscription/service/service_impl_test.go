package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rzbeall84/ask-rita/internal/cache"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	"github.com/rzbeall84/ask-rita/internal/subscription/repository"
)

func setupSubscriptionService(t *testing.T, subCache cache.SubscriptionCache) subscriptiondomain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	err = db.Exec(`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		organization_id BIGINT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		current_period_start TIMESTAMP,
		current_period_end TIMESTAMP,
		grace_period_end TIMESTAMP,
		unlimited_usage BOOLEAN NOT NULL DEFAULT FALSE,
		provider_customer_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error
	assert.NoError(t, err)

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	return NewService(ServiceParam{
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(repository.Param{DB: db}),
		SubCache: subCache,
	})
}

func TestEnsureDefaultIsIdempotent(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	orgID := snowflake.ID(101)

	first, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusInactive, first.Status)
	assert.Equal(t, plan.Free, first.PlanID)

	second, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second ensure must not replace the row")
}

func TestActivateClearsGraceWindow(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	orgID := snowflake.ID(102)

	_, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)

	graceEnd := time.Now().UTC().Add(72 * time.Hour)
	assert.NoError(t, svc.MarkPastDue(ctx, orgID, graceEnd))

	sub, err := svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPastDue, sub.Status)
	assert.NotNil(t, sub.GracePeriodEnd)

	start := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	err = svc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OrgID:       orgID,
		Plan:        plan.Pro,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	assert.NoError(t, err)

	sub, err = svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.Equal(t, plan.Pro, sub.PlanID)
	assert.Nil(t, sub.GracePeriodEnd, "activation must clear the grace window")
	assert.True(t, sub.PeriodSet())
}

func TestActivatePastDueKeepsGraceWindow(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	orgID := snowflake.ID(107)

	_, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)

	graceEnd := time.Date(2026, time.February, 4, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, svc.MarkPastDue(ctx, orgID, graceEnd))

	// An upsert that leaves the subscription past_due keeps the stored
	// window; only leaving the grace-bearing states clears it.
	start := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	err = svc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OrgID:       orgID,
		Status:      subscriptiondomain.StatusPastDue,
		Plan:        plan.Starter,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	assert.NoError(t, err)

	sub, err := svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPastDue, sub.Status)
	assert.Equal(t, plan.Starter, sub.PlanID)
	if assert.NotNil(t, sub.GracePeriodEnd) {
		assert.True(t, sub.GracePeriodEnd.Equal(graceEnd))
	}
}

func TestMarkCanceledRecomputesGraceWindow(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	orgID := snowflake.ID(103)

	_, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)

	firstEnd := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, svc.MarkCanceled(ctx, orgID, firstEnd))

	// A later delivery of the same cancellation moves the window, it never
	// stacks on top of the previous one.
	secondEnd := firstEnd.Add(24 * time.Hour)
	assert.NoError(t, svc.MarkCanceled(ctx, orgID, secondEnd))

	sub, err := svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCanceled, sub.Status)
	assert.NotNil(t, sub.GracePeriodEnd)
	assert.Equal(t, secondEnd.Unix(), sub.GracePeriodEnd.UTC().Unix())
}

func TestActivateValidatesPeriod(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()

	err := svc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OrgID:       snowflake.ID(104),
		Plan:        plan.Starter,
		PeriodStart: time.Now(),
		PeriodEnd:   time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidPeriod)

	err = svc.Activate(ctx, subscriptiondomain.ActivateRequest{Plan: plan.Starter})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidOrganization)
}

func TestSetUnlimitedUsageTogglesOverride(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	orgID := snowflake.ID(105)

	_, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)

	assert.NoError(t, svc.SetUnlimitedUsage(ctx, orgID, true))
	sub, err := svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.True(t, sub.UnlimitedUsage)

	assert.NoError(t, svc.SetUnlimitedUsage(ctx, orgID, false))
	sub, err = svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.False(t, sub.UnlimitedUsage)
}

func TestCountInGraceCountsOpenWindowsOnly(t *testing.T) {
	svc := setupSubscriptionService(t, nil)
	ctx := context.Background()
	now := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	inGrace := snowflake.ID(106)
	expired := snowflake.ID(107)
	active := snowflake.ID(108)
	for _, orgID := range []snowflake.ID{inGrace, expired, active} {
		_, err := svc.EnsureDefault(ctx, orgID)
		assert.NoError(t, err)
	}

	assert.NoError(t, svc.MarkPastDue(ctx, inGrace, now.Add(time.Hour)))
	assert.NoError(t, svc.MarkCanceled(ctx, expired, now.Add(-time.Hour)))

	count, err := svc.CountInGrace(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBillingTransitionsInvalidateCache(t *testing.T) {
	subCache := cache.NewSubscriptionCache()
	svc := setupSubscriptionService(t, subCache)
	ctx := context.Background()
	orgID := snowflake.ID(109)

	_, err := svc.EnsureDefault(ctx, orgID)
	assert.NoError(t, err)

	// Prime the cache.
	_, err = svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	_, cached := subCache.Get(orgID)
	assert.True(t, cached)

	graceEnd := time.Now().UTC().Add(72 * time.Hour)
	assert.NoError(t, svc.MarkPastDue(ctx, orgID, graceEnd))
	_, cached = subCache.Get(orgID)
	assert.False(t, cached, "transition must evict the cached subscription")

	sub, err := svc.GetByOrgID(ctx, orgID)
	assert.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPastDue, sub.Status)
}
