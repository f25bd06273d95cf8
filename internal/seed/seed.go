// Package seed bootstraps the default organization so the service is usable
// out of the box in local and self-hosted environments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization and its inactive free
// subscription. A zero orgID lets the snowflake node pick one.
func EnsureDefaultOrg(db *gorm.DB, orgID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureOrgTx(ctx, tx, node, orgID)
		if err != nil {
			return err
		}
		return ensureSubscriptionTx(ctx, tx, node, org.ID)
	})
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).
		Where("slug = ?", defaultOrgSlug).
		First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if orgID == 0 {
		orgID = node.Generate()
	}
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        orgID,
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func ensureSubscriptionTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	var sub subscriptiondomain.Subscription
	err := tx.WithContext(ctx).
		Where("organization_id = ?", orgID).
		First(&sub).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	sub = subscriptiondomain.Subscription{
		ID:        node.Generate(),
		OrgID:     orgID,
		Status:    subscriptiondomain.StatusInactive,
		PlanID:    plan.Free,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).Create(&sub).Error
}
