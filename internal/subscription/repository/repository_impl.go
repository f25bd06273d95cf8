package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	FindByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error)
	// Upsert inserts or replaces the org's single subscription row. Conflict
	// target is the unique organization_id index, so concurrent upserts for
	// the same org collapse into one row.
	Upsert(ctx context.Context, sub *subscriptiondomain.Subscription) error
	// InsertIfAbsent creates the row only when the org has none yet.
	InsertIfAbsent(ctx context.Context, sub *subscriptiondomain.Subscription) error
	// SetStatusWithGrace moves the row into a grace-carrying state in one
	// statement. Returns ErrSubscriptionNotFound when the org has no row.
	SetStatusWithGrace(ctx context.Context, orgID snowflake.ID, status subscriptiondomain.Status, graceEnd time.Time) error
	SetUnlimitedUsage(ctx context.Context, orgID snowflake.ID, unlimited bool) error
	// CountInGrace counts rows whose grace window is still open at now.
	CountInGrace(ctx context.Context, now time.Time) (int64, error)
}

type Param struct {
	fx.In

	DB *gorm.DB
}

type repository struct {
	db *gorm.DB
}

func Provide(p Param) Repository {
	return &repository{db: p.DB}
}

func (r *repository) FindByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Upsert(ctx context.Context, sub *subscriptiondomain.Subscription) error {
	columns := []string{
		"status",
		"plan_type",
		"current_period_start",
		"current_period_end",
		"updated_at",
	}
	// A status that can still carry a grace window keeps the stored
	// grace_period_end; any other status clears it.
	if !sub.Status.InGraceEligibleState() {
		columns = append(columns, "grace_period_end")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(sub).Error
}

func (r *repository) InsertIfAbsent(ctx context.Context, sub *subscriptiondomain.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoNothing: true,
		}).
		Create(sub).Error
}

func (r *repository) SetStatusWithGrace(ctx context.Context, orgID snowflake.ID, status subscriptiondomain.Status, graceEnd time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, grace_period_end = ?, updated_at = ?
		 WHERE organization_id = ?`,
		status,
		graceEnd,
		time.Now().UTC(),
		orgID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repository) CountInGrace(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("status IN ? AND grace_period_end IS NOT NULL AND grace_period_end > ?",
			[]subscriptiondomain.Status{subscriptiondomain.StatusPastDue, subscriptiondomain.StatusCanceled},
			now,
		).
		Count(&count).Error
	return count, err
}

func (r *repository) SetUnlimitedUsage(ctx context.Context, orgID snowflake.ID, unlimited bool) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET unlimited_usage = ?, updated_at = ?
		 WHERE organization_id = ?`,
		unlimited,
		time.Now().UTC(),
		orgID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	return nil
}
