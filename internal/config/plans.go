package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SeatLimitUnbounded marks a plan with no seat cap.
const SeatLimitUnbounded = -1

// PlanSpec is one row of the plan catalog: limits plus the billing-provider
// price identifier the plan is sold under. Plans are keyed strictly by price
// ID, never by price amount.
type PlanSpec struct {
	ID             string `mapstructure:"id"`
	PriceID        string `mapstructure:"priceId"`
	SeatLimit      int    `mapstructure:"seatLimit"`
	QueryLimit     int    `mapstructure:"queryLimit"`
	StorageLimitGB int    `mapstructure:"storageLimitGb"`
}

// PackSpec is one purchasable overage pack. Buying one adds QueryCredits to
// the current billing period without changing the base plan.
type PackSpec struct {
	ID           string `mapstructure:"id"`
	PriceID      string `mapstructure:"priceId"`
	QueryCredits int    `mapstructure:"queryCredits"`
	PriceAmount  int64  `mapstructure:"priceAmount"`
}

// PlanCatalogConfig is the operator-facing catalog: plan limits, overage
// packs, and the grace window applied after failed or canceled payments.
type PlanCatalogConfig struct {
	GracePeriodDays int        `mapstructure:"gracePeriodDays"`
	Plans           []PlanSpec `mapstructure:"plans"`
	Packs           []PackSpec `mapstructure:"packs"`
}

func DefaultPlanCatalogConfig() PlanCatalogConfig {
	return PlanCatalogConfig{
		GracePeriodDays: 3,
		Plans: []PlanSpec{
			{ID: "free", PriceID: "", SeatLimit: 2, QueryLimit: 100, StorageLimitGB: 1},
			{ID: "starter", PriceID: "price_starter_monthly", SeatLimit: 5, QueryLimit: 1500, StorageLimitGB: 10},
			{ID: "pro", PriceID: "price_pro_monthly", SeatLimit: 25, QueryLimit: 5000, StorageLimitGB: 50},
			{ID: "enterprise", PriceID: "price_enterprise_monthly", SeatLimit: SeatLimitUnbounded, QueryLimit: 15000, StorageLimitGB: 200},
		},
		Packs: []PackSpec{
			{ID: "pack_1000", PriceID: "price_pack_1000", QueryCredits: 1000, PriceAmount: 2500},
			{ID: "pack_5000", PriceID: "price_pack_5000", QueryCredits: 5000, PriceAmount: 10000},
		},
	}
}

// PlanCatalogHolder exposes the live catalog with hot reload from plans.yml.
type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalogConfig
}

func NewPlanCatalogHolder(log *zap.Logger) (*PlanCatalogHolder, error) {
	log = log.Named("config.plans")

	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/askrita/config") // Volume-mounted config
	v.AddConfigPath("/etc/askrita")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("ASKRITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlanCatalogConfig()
		v.SetDefault("catalog.gracePeriodDays", defaults.GracePeriodDays)
		v.SetDefault("catalog.plans", defaults.Plans)
		v.SetDefault("catalog.packs", defaults.Packs)
	}

	var cfg PlanCatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(cfg); err != nil {
		return nil, err
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalogConfig
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Warn("plan catalog reload failed", zap.Error(err))
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Warn("invalid plan catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("plan catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticPlanCatalogHolder wraps a fixed catalog, for tests and tools that
// do not want file watching.
func NewStaticPlanCatalogHolder(cfg PlanCatalogConfig) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PlanCatalogHolder) Get() PlanCatalogConfig {
	return h.current.Load().(PlanCatalogConfig)
}

func validatePlanCatalog(cfg PlanCatalogConfig) error {
	if cfg.GracePeriodDays < 0 {
		return errors.New("catalog.gracePeriodDays cannot be negative")
	}
	if len(cfg.Plans) == 0 {
		return errors.New("catalog.plans cannot be empty")
	}
	hasFree := false
	for _, p := range cfg.Plans {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("catalog.plans entries need an id")
		}
		if p.QueryLimit < 0 {
			return errors.New("catalog.plans queryLimit cannot be negative")
		}
		if p.ID == "free" {
			hasFree = true
		}
	}
	if !hasFree {
		return errors.New("catalog.plans must include the free fallback plan")
	}
	for _, p := range cfg.Packs {
		if strings.TrimSpace(p.ID) == "" || p.QueryCredits <= 0 {
			return errors.New("catalog.packs entries need an id and positive queryCredits")
		}
	}
	return nil
}
