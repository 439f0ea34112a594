package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tutorbase/tutorbase/internal/apikey"
	"github.com/tutorbase/tutorbase/internal/audit"
	"github.com/tutorbase/tutorbase/internal/billingrun"
	"github.com/tutorbase/tutorbase/internal/clock"
	"github.com/tutorbase/tutorbase/internal/config"
	"github.com/tutorbase/tutorbase/internal/events"
	"github.com/tutorbase/tutorbase/internal/invoice"
	"github.com/tutorbase/tutorbase/internal/ledger"
	"github.com/tutorbase/tutorbase/internal/lesson"
	"github.com/tutorbase/tutorbase/internal/migration"
	"github.com/tutorbase/tutorbase/internal/observability"
	"github.com/tutorbase/tutorbase/internal/payout"
	"github.com/tutorbase/tutorbase/internal/seed"
	"github.com/tutorbase/tutorbase/internal/server"
	"github.com/tutorbase/tutorbase/internal/student"
	"github.com/tutorbase/tutorbase/internal/tutor"
	"github.com/tutorbase/tutorbase/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		fx.Provide(events.NewOutbox),
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.Bootstrap.EnsureAPIKey {
				return seed.EnsureBootstrapAPIKey(conn, log)
			}
			return nil
		}),
		student.Module,
		tutor.Module,
		lesson.Module,
		invoice.Module,
		payout.Module,
		ledger.Module,
		audit.Module,
		apikey.Module,
		billingrun.Module,
		server.Module,
	)
	app.Run()
}
