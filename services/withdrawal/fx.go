package withdrawal

import (
	"go.uber.org/fx"
)

var Module = fx.Module("withdrawal.service",
	fx.Provide(NewService),
	fx.Invoke(RegisterRoutes),
)
