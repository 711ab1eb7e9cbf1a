package offerwall

import "go.uber.org/fx"

var Module = fx.Module("offerwall.service",
	fx.Provide(NewService),
	fx.Invoke(RegisterRoutes),
)
