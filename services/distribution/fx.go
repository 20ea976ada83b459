package distribution

import (
	"setledger/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("distribution.engine",
	fx.Provide(
		NewEngine,
		NewScheduler,
		NewLogNotifier,
		provideLocker,
	),
	fx.Invoke(RegisterRoutes, RegisterTasks, StartScheduler),
)

func provideLocker(client *redis.Client, cfg *config.Config) SettleLocker {
	return NewRedisLocker(client, cfg.Distribution.LockTTL)
}
