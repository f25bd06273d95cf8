package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingeventdomain "github.com/rzbeall84/ask-rita/internal/billingevent/domain"
	"github.com/rzbeall84/ask-rita/internal/billingperiod"
	"github.com/rzbeall84/ask-rita/internal/clock"
	"github.com/rzbeall84/ask-rita/internal/config"
	gatedomain "github.com/rzbeall84/ask-rita/internal/gate/domain"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
	"github.com/rzbeall84/ask-rita/pkg/db/pagination"
)

type fakeGateService struct {
	lastOrgID snowflake.ID
	lastRole  string
	lastType  gatedomain.LimitType
	result    gatedomain.Result
}

func (f *fakeGateService) CheckAndConsume(ctx context.Context, orgID snowflake.ID, role string, limitType gatedomain.LimitType) gatedomain.Result {
	_ = ctx
	f.lastOrgID = orgID
	f.lastRole = role
	f.lastType = limitType
	return f.result
}

type fakeBillingEventService struct {
	ingested []billingeventdomain.Event
}

func (f *fakeBillingEventService) Ingest(ctx context.Context, ev billingeventdomain.Event) error {
	_ = ctx
	f.ingested = append(f.ingested, ev)
	return nil
}

func (f *fakeBillingEventService) ListLog(ctx context.Context, orgID snowflake.ID, p pagination.Pagination) (*billingeventdomain.LogPage, error) {
	_ = ctx
	_ = orgID
	_ = p
	return &billingeventdomain.LogPage{}, nil
}

type fakeOrgService struct {
	role string
}

func (f *fakeOrgService) Create(ctx context.Context, req organizationdomain.CreateOrganizationRequest) (*organizationdomain.Organization, error) {
	_ = ctx
	_ = req
	return &organizationdomain.Organization{ID: snowflake.ID(1)}, nil
}

func (f *fakeOrgService) GetByID(ctx context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	_ = ctx
	return &organizationdomain.Organization{ID: orgID}, nil
}

func (f *fakeOrgService) SeatUsage(ctx context.Context, orgID snowflake.ID) (int, error) {
	_ = ctx
	_ = orgID
	return 1, nil
}

func (f *fakeOrgService) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	_ = ctx
	_ = orgID
	_ = userID
	if f.role == "" {
		return "", organizationdomain.ErrMemberNotFound
	}
	return f.role, nil
}

func (f *fakeOrgService) CreateInvite(ctx context.Context, req organizationdomain.CreateInviteRequest) (*organizationdomain.OrganizationInvite, error) {
	_ = ctx
	return &organizationdomain.OrganizationInvite{OrgID: req.OrgID, Email: req.Email}, nil
}

type fakeSubscriptionService struct {
	sub *subscriptiondomain.Subscription
}

func (f *fakeSubscriptionService) GetByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	_ = orgID
	return f.sub, nil
}

func (f *fakeSubscriptionService) EnsureDefault(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	_ = ctx
	_ = orgID
	return f.sub, nil
}

func (f *fakeSubscriptionService) Activate(ctx context.Context, req subscriptiondomain.ActivateRequest) error {
	_ = ctx
	_ = req
	return nil
}

func (f *fakeSubscriptionService) MarkCanceled(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error {
	_ = ctx
	_ = orgID
	_ = graceEnd
	return nil
}

func (f *fakeSubscriptionService) MarkPastDue(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error {
	_ = ctx
	_ = orgID
	_ = graceEnd
	return nil
}

func (f *fakeSubscriptionService) SetUnlimitedUsage(ctx context.Context, orgID snowflake.ID, unlimited bool) error {
	_ = ctx
	_ = orgID
	_ = unlimited
	return nil
}

func (f *fakeSubscriptionService) CountInGrace(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx
	_ = now
	return 0, nil
}

type fakeUsageService struct {
	row *usagedomain.QueryUsage
}

func (f *fakeUsageService) GetOrCreate(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) (*usagedomain.QueryUsage, error) {
	_ = ctx
	_ = orgID
	_ = period
	return f.row, nil
}

func (f *fakeUsageService) Consume(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, planLimit int) (usagedomain.IncrementResult, bool, error) {
	_ = ctx
	_ = orgID
	_ = period
	_ = planLimit
	return usagedomain.IncrementResult{}, false, nil
}

func (f *fakeUsageService) RecordUnmetered(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) error {
	_ = ctx
	_ = orgID
	_ = period
	return nil
}

func (f *fakeUsageService) AddExtraCredits(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, credits int) error {
	_ = ctx
	_ = orgID
	_ = period
	_ = credits
	return nil
}

func (f *fakeUsageService) MarkNotified(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, threshold int) (bool, error) {
	_ = ctx
	_ = orgID
	_ = period
	_ = threshold
	return false, nil
}

func TestCheckGateHandlerReturnsDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)

	gateSvc := &fakeGateService{result: gatedomain.Result{
		Allowed:    true,
		Usage:      5,
		Limit:      100,
		Remaining:  95,
		Percentage: 5,
	}}
	srv := &Server{
		log:             zap.NewNop(),
		gateSvc:         gateSvc,
		organizationSvc: &fakeOrgService{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/gate/check", srv.OrgContext(), srv.CheckGate)

	req := httptest.NewRequest(http.MethodPost, "/v1/gate/check", bytes.NewBufferString(`{"limit_type":"queries"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrg, "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gateSvc.lastOrgID != snowflake.ID(42) {
		t.Fatalf("expected org 42, got %v", gateSvc.lastOrgID)
	}
	if gateSvc.lastType != gatedomain.LimitQueries {
		t.Fatalf("expected queries limit type, got %q", gateSvc.lastType)
	}
	if gateSvc.lastRole != subscriptiondomain.RoleOwner {
		t.Fatalf("expected anonymous caller gated as owner, got %q", gateSvc.lastRole)
	}

	var result gatedomain.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Allowed || result.Remaining != 95 {
		t.Fatalf("unexpected decision: %+v", result)
	}
}

func TestCheckGateHandlerResolvesMemberRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	gateSvc := &fakeGateService{result: gatedomain.Result{Allowed: true}}
	srv := &Server{
		log:             zap.NewNop(),
		gateSvc:         gateSvc,
		organizationSvc: &fakeOrgService{role: "member"},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/gate/check", srv.OrgContext(), srv.CheckGate)

	req := httptest.NewRequest(http.MethodPost, "/v1/gate/check", bytes.NewBufferString(`{"limit_type":"users"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrg, "42")
	req.Header.Set(HeaderUser, "7")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if gateSvc.lastRole != "member" {
		t.Fatalf("expected member role, got %q", gateSvc.lastRole)
	}
}

func TestCheckGateHandlerRequiresOrgHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:     zap.NewNop(),
		gateSvc: &fakeGateService{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/gate/check", srv.OrgContext(), srv.CheckGate)

	req := httptest.NewRequest(http.MethodPost, "/v1/gate/check", bytes.NewBufferString(`{"limit_type":"queries"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestWebhookHandlerAlwaysAcknowledges(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ingestor := &fakeBillingEventService{}
	srv := &Server{
		log:             zap.NewNop(),
		billingEventSvc: ingestor,
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/billing/webhook", srv.HandleBillingWebhook)

	body := `{"provider_event_id":"evt_1","type":"subscription_activated","org_id":"42","price_id":"price_starter_monthly"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(ingestor.ingested) != 1 {
		t.Fatalf("expected one ingested event, got %d", len(ingestor.ingested))
	}
	if ingestor.ingested[0].ProviderEventID != "evt_1" {
		t.Fatalf("unexpected event: %+v", ingestor.ingested[0])
	}

	// Malformed payloads are acknowledged too; the provider must not retry.
	req = httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for malformed payload, got %d", resp.Code)
	}
	if len(ingestor.ingested) != 1 {
		t.Fatalf("malformed payload must not reach the ingestor")
	}
}

func TestGetSubscriptionMissingReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:             zap.NewNop(),
		subscriptionSvc: &fakeSubscriptionService{sub: nil},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/v1/subscription", srv.OrgContext(), srv.GetSubscription)

	req := httptest.NewRequest(http.MethodGet, "/v1/subscription", nil)
	req.Header.Set(HeaderOrg, "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestUsageSummaryKeepsPlanDuringGrace(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	graceEnd := now.Add(48 * time.Hour)
	periodStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)
	sub := &subscriptiondomain.Subscription{
		OrgID:              snowflake.ID(42),
		Status:             subscriptiondomain.StatusPastDue,
		PlanID:             plan.Starter,
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
		GracePeriodEnd:     &graceEnd,
	}

	holder := config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalogConfig())
	srv := &Server{
		log:             zap.NewNop(),
		clock:           clock.NewFakeClock(now),
		catalog:         plan.NewCatalog(holder),
		subscriptionSvc: &fakeSubscriptionService{sub: sub},
		usageSvc:        &fakeUsageService{row: &usagedomain.QueryUsage{OrgID: 42, QueriesUsed: 120}},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/v1/usage/summary", srv.OrgContext(), srv.GetUsageSummary)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/summary", nil)
	req.Header.Set(HeaderOrg, "42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body struct {
		PlanType   string `json:"plan_type"`
		TotalLimit int    `json:"total_limit"`
		Remaining  int    `json:"remaining"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// Inside the grace window the summary reports the paid plan's limits,
	// matching what the gate enforces.
	if body.PlanType != string(plan.Starter) {
		t.Fatalf("expected starter during grace, got %q", body.PlanType)
	}
	if body.TotalLimit != 1500 || body.Remaining != 1380 {
		t.Fatalf("expected starter limits, got total=%d remaining=%d", body.TotalLimit, body.Remaining)
	}

	// Once the window closes the summary falls back to the free tier.
	srv.clock = clock.NewFakeClock(graceEnd.Add(time.Hour))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.PlanType != string(plan.Free) {
		t.Fatalf("expected free after grace, got %q", body.PlanType)
	}
}
