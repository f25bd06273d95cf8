package subscription

import (
	"github.com/rzbeall84/ask-rita/internal/subscription/repository"
	"github.com/rzbeall84/ask-rita/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
