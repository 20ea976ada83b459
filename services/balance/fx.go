package balance

import (
	"setledger/pkg/featureflags"

	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	featureflags.Module,
	fx.Provide(NewService, NewEstimator),
	fx.Invoke(RegisterRoutes),
)
