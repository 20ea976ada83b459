package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"setledger/pkg/config"
	"setledger/pkg/db"
	"setledger/pkg/logger"
	"setledger/pkg/profiling"
	"setledger/pkg/redis"
	"setledger/pkg/sequence"
	"setledger/pkg/server"
	"setledger/pkg/task"
	"setledger/services/balance"
	"setledger/services/distribution"
	"setledger/services/points"
	"setledger/services/revenue"
	"setledger/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		task.Client,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			providePendingEstimator,
		),
		balance.Module,
		points.Module,
		revenue.Module,
		distribution.Module,
		withdrawal.Module,
		server.ProvideHTTPServer,
		fx.Invoke(migrate, db.Otel),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func providePendingEstimator(e *balance.Estimator) points.PendingEstimator {
	return e
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&points.PointsDay{},
		&points.PointActivity{},
		&revenue.AdImpression{},
		&distribution.RevenuePool{},
		&distribution.PointDistribution{},
		&balance.UserBalance{},
		&withdrawal.WithdrawalRequest{},
	)
}
