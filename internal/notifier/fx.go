package notifier

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("notifier",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, n Notifier) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return n.Flush(ctx)
		},
	})
}
