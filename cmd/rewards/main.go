package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rewardsplane/pkg/config"
	"rewardsplane/pkg/db"
	"rewardsplane/pkg/health"
	"rewardsplane/pkg/logger"
	"rewardsplane/pkg/redis"
	"rewardsplane/pkg/sequence"
	"rewardsplane/pkg/server"
	"rewardsplane/pkg/task"
	"rewardsplane/services/ledger"
	"rewardsplane/services/offerwall"
	"rewardsplane/services/provider"
	"rewardsplane/services/reward"
	"rewardsplane/services/tournament"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		sequence.Module,
		health.Module,
		fx.Provide(provideSnowflakeNode),
		server.ProvideHTTPServer,
		provider.Module,
		ledger.Module,
		offerwall.Module,
		reward.Module,
		tournament.Module,
		fx.Invoke(migrate),
		fx.Invoke(registerHealthRoutes),
		fx.Invoke(db.Otel),
		fx.Invoke(db.Metric),
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

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&ledger.OfferCompletion{},
		&ledger.Transaction{},
		&ledger.Balance{},
		&tournament.Entry{},
		&reward.AdView{},
		&reward.UserStats{},
	)
}

func registerHealthRoutes(engine *gin.Engine, svc health.HealthService) {
	engine.GET("/healthz", svc.Liveness)
	engine.GET("/readyz", svc.Readiness)
}
