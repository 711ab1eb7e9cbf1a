package tournament

import (
	"go.uber.org/fx"
)

var Module = fx.Module("tournament.service",
	fx.Provide(NewService, NewAsynqNotifier, NewTask, NewScheduler),
	fx.Invoke(RegisterHandlers),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartScheduler),
)
