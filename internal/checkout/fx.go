package checkout

import (
	"go.uber.org/fx"

	"github.com/rzbeall84/ask-rita/internal/checkout/service"
)

var Module = fx.Module("checkout",
	fx.Provide(
		service.NewHostedProvider,
		service.NewService,
	),
)
