package revenue

import (
	"go.uber.org/fx"
)

var Module = fx.Module("revenue.calculator",
	fx.Provide(NewCalculator),
	fx.Invoke(RegisterRoutes),
)
