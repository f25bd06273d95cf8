package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/billingperiod"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
	"github.com/rzbeall84/ask-rita/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	metrics *telemetry.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) (*usagedomain.QueryUsage, error) {
	if orgID == 0 {
		return nil, usagedomain.ErrInvalidOrganization
	}
	if period.Key == "" {
		return nil, usagedomain.ErrInvalidPeriod
	}

	now := time.Now().UTC()
	row := &usagedomain.QueryUsage{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		BillingPeriod:      period.Key,
		BillingPeriodStart: period.Start,
		BillingPeriodEnd:   period.End,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Insert-on-conflict-do-nothing, then re-read: under a concurrent first
	// access exactly one insert wins and everyone reads the same row.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "billing_period"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	return s.find(ctx, orgID, period.Key)
}

func (s *Service) Consume(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, planLimit int) (usagedomain.IncrementResult, bool, error) {
	if _, err := s.GetOrCreate(ctx, orgID, period); err != nil {
		return usagedomain.IncrementResult{}, false, err
	}

	// Single conditional bump: the limit check and the increment are one
	// statement, so two devices of the same org racing at the boundary
	// serialize on the row and only one crosses it.
	result := s.db.WithContext(ctx).Exec(
		`UPDATE query_usage
		 SET queries_used = queries_used + 1, updated_at = ?
		 WHERE org_id = ? AND billing_period = ?
		   AND queries_used < ? + extra_queries_purchased`,
		time.Now().UTC(),
		orgID,
		period.Key,
		planLimit,
	)
	if result.Error != nil {
		return usagedomain.IncrementResult{}, false, result.Error
	}
	consumed := result.RowsAffected > 0

	row, err := s.find(ctx, orgID, period.Key)
	if err != nil {
		return usagedomain.IncrementResult{}, false, err
	}
	if row == nil {
		return usagedomain.IncrementResult{}, false, usagedomain.ErrLedgerRowMissing
	}

	if consumed {
		s.metrics.IncLedgerIncrement("metered")
	}
	return buildResult(row, planLimit), consumed, nil
}

func (s *Service) RecordUnmetered(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) error {
	if _, err := s.GetOrCreate(ctx, orgID, period); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Exec(
		`UPDATE query_usage
		 SET queries_used = queries_used + 1, updated_at = ?
		 WHERE org_id = ? AND billing_period = ?`,
		time.Now().UTC(),
		orgID,
		period.Key,
	).Error
	if err != nil {
		return err
	}
	s.metrics.IncLedgerIncrement("unmetered")
	return nil
}

func (s *Service) AddExtraCredits(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, credits int) error {
	if credits <= 0 {
		return usagedomain.ErrInvalidCredits
	}
	if _, err := s.GetOrCreate(ctx, orgID, period); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Exec(
		`UPDATE query_usage
		 SET extra_queries_purchased = extra_queries_purchased + ?, updated_at = ?
		 WHERE org_id = ? AND billing_period = ?`,
		credits,
		time.Now().UTC(),
		orgID,
		period.Key,
	).Error
	if err != nil {
		return err
	}
	s.metrics.IncLedgerIncrement("credits")
	return nil
}

func (s *Service) MarkNotified(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, threshold int) (bool, error) {
	var column string
	switch threshold {
	case usagedomain.Threshold80:
		column = "last_notification_80"
	case usagedomain.Threshold100:
		column = "last_notification_100"
	default:
		return false, usagedomain.ErrInvalidThreshold
	}

	// The IS NULL guard makes the claim at-most-once per period: only the
	// first caller flips the watermark.
	result := s.db.WithContext(ctx).Exec(
		`UPDATE query_usage
		 SET `+column+` = ?, updated_at = ?
		 WHERE org_id = ? AND billing_period = ? AND `+column+` IS NULL`,
		time.Now().UTC(),
		time.Now().UTC(),
		orgID,
		period.Key,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) find(ctx context.Context, orgID snowflake.ID, periodKey string) (*usagedomain.QueryUsage, error) {
	var row usagedomain.QueryUsage
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND billing_period = ?", orgID, periodKey).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func buildResult(row *usagedomain.QueryUsage, planLimit int) usagedomain.IncrementResult {
	totalLimit := planLimit + row.ExtraQueriesPurchased
	percentage := 0
	if totalLimit > 0 {
		percentage = 100 * row.QueriesUsed / totalLimit
		if percentage > 100 {
			percentage = 100
		}
	}
	remaining := totalLimit - row.QueriesUsed
	if remaining < 0 {
		remaining = 0
	}
	return usagedomain.IncrementResult{
		NewUsage:   row.QueriesUsed,
		TotalLimit: totalLimit,
		Remaining:  remaining,
		Percentage: percentage,
	}
}
