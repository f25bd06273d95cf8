package gate

import (
	"go.uber.org/fx"

	"github.com/rzbeall84/ask-rita/internal/gate/service"
)

var Module = fx.Module("gate",
	fx.Provide(service.NewService),
)
