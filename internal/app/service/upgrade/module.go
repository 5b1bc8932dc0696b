package upgrade

import "go.uber.org/fx"

// Module exposes the upgrade service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
