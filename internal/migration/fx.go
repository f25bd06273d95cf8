package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	billingeventdomain "github.com/rzbeall84/ask-rita/internal/billingevent/domain"
	"github.com/rzbeall84/ask-rita/internal/config"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	"github.com/rzbeall84/ask-rita/internal/seed"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
	usagedomain "github.com/rzbeall84/ask-rita/internal/usage/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned SQL targets postgres; other dialects are for local
			// development and get the schema straight from the models.
			if err := conn.AutoMigrate(
				&organizationdomain.Organization{},
				&organizationdomain.OrganizationMember{},
				&organizationdomain.OrganizationInvite{},
				&subscriptiondomain.Subscription{},
				&usagedomain.QueryUsage{},
				&billingeventdomain.EventLog{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultOrg(conn, snowflake.ID(cfg.DefaultOrgID))
	}),
)
