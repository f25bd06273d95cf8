package cache

import "go.uber.org/fx"

// Module wires the subscription lookup cache.
var Module = fx.Module("cache",
	fx.Provide(NewSubscriptionCache),
)
