package plan

import "go.uber.org/fx"

// Module wires the plan catalog.
var Module = fx.Module("plan.catalog",
	fx.Provide(NewCatalog),
)
