package organization

import (
	"github.com/rzbeall84/ask-rita/internal/organization/repository"
	"github.com/rzbeall84/ask-rita/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
