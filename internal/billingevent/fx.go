package billingevent

import (
	"go.uber.org/fx"

	"github.com/rzbeall84/ask-rita/internal/billingevent/service"
)

var Module = fx.Module("billingevent",
	fx.Provide(service.NewService),
)
