package usage

import (
	"github.com/rzbeall84/ask-rita/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(service.NewService),
)
