package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rzbeall84/ask-rita/internal/clock"
	"github.com/rzbeall84/ask-rita/internal/config"
	"github.com/rzbeall84/ask-rita/internal/logger"
	"github.com/rzbeall84/ask-rita/internal/migration"
	"github.com/rzbeall84/ask-rita/internal/observability"
	"github.com/rzbeall84/ask-rita/internal/server"
	"github.com/rzbeall84/ask-rita/pkg/db"
	"github.com/rzbeall84/ask-rita/pkg/telemetry"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		telemetry.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
