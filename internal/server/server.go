package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rzbeall84/ask-rita/internal/billingevent"
	billingeventdomain "github.com/rzbeall84/ask-rita/internal/billingevent/domain"
	"github.com/rzbeall84/ask-rita/internal/cache"
	"github.com/rzbeall84/ask-rita/internal/checkout"
	checkoutdomain "github.com/rzbeall84/ask-rita/internal/checkout/domain"
	"github.com/rzbeall84/ask-rita/internal/clock"
	"github.com/rzbeall84/ask-rita/internal/config"
	"github.com/rzbeall84/ask-rita/internal/gate"
	gatedomain "github.com/rzbeall84/ask-rita/internal/gate/domain"
	"github.com/rzbeall84/ask-rita/internal/notifier"
	"github.com/rzbeall84/ask-rita/internal/observability"
	"github.com/rzbeall84/ask-rita/internal/organization"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
	"github.com/rzbeall84/ask-rita/internal/ratelimit"
	"github.com/rzbeall84/ask-rita/internal/subscription"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	"github.com/rzbeall84/ask-rita/internal/usage"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
)

var Module = fx.Module("http.server",
	plan.Module,
	cache.Module,
	notifier.Module,
	ratelimit.Module,
	organization.Module,
	subscription.Module,
	usage.Module,
	gate.Module,
	billingevent.Module,
	checkout.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CorrelationMiddleware())
	r.Use(observability.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config) *gin.Engine {
	return NewEngine(cfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	catalog         *plan.Catalog
	organizationSvc organizationdomain.Service
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	gateSvc         gatedomain.Service
	billingEventSvc billingeventdomain.Service
	checkoutSvc     checkoutdomain.Service
	limiter         *ratelimit.RequestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Catalog         *plan.Catalog
	OrganizationSvc organizationdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	GateSvc         gatedomain.Service
	BillingEventSvc billingeventdomain.Service
	CheckoutSvc     checkoutdomain.Service
	Limiter         *ratelimit.RequestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		genID:           p.GenID,
		clock:           p.Clock,
		catalog:         p.Catalog,
		organizationSvc: p.OrganizationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		gateSvc:         p.GateSvc,
		billingEventSvc: p.BillingEventSvc,
		checkoutSvc:     p.CheckoutSvc,
		limiter:         p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// The webhook carries the org in its payload, so it skips OrgContext.
	v1.POST("/billing/webhook", s.WebhookRateLimit(), s.HandleBillingWebhook)

	v1.POST("/organizations", s.CreateOrganization)

	org := v1.Group("", s.OrgContext())
	{
		org.POST("/gate/check", s.GateRateLimit(), s.CheckGate)
		org.GET("/usage/summary", s.GetUsageSummary)
		org.GET("/subscription", s.GetSubscription)
		org.GET("/billing/events", s.ListBillingEvents)
		org.POST("/checkout/session", s.CreateCheckoutSession)
		org.POST("/checkout/portal", s.CreatePortalSession)
		org.POST("/organizations/invites", s.CreateOrganizationInvite)
	}
}
