// Package domain contains persistence models for the per-period usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// QueryUsage is the ledger row for one organization and one billing period.
// Created lazily on first metered action of a period; counters only ever go
// up. billing_period holds the period key (the start date) and forms the
// composite unique index with org_id, so the concurrent first-access race
// collapses to a single row.
type QueryUsage struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID                 snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_query_usage_org_period,priority:1" json:"org_id"`
	BillingPeriod         string       `gorm:"column:billing_period;type:date;not null;uniqueIndex:ux_query_usage_org_period,priority:2" json:"billing_period"`
	BillingPeriodStart    time.Time    `gorm:"not null" json:"billing_period_start"`
	BillingPeriodEnd      time.Time    `gorm:"not null" json:"billing_period_end"`
	QueriesUsed           int          `gorm:"not null;default:0" json:"queries_used"`
	ExtraQueriesPurchased int          `gorm:"not null;default:0" json:"extra_queries_purchased"`
	LastNotification80    *time.Time   `gorm:"column:last_notification_80" json:"last_notification_80,omitempty"`
	LastNotification100   *time.Time   `gorm:"column:last_notification_100" json:"last_notification_100,omitempty"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (QueryUsage) TableName() string { return "query_usage" }
