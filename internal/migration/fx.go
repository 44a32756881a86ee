package migration

import (
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.MigrateOnStart {
		log.Info("migrations skipped")
		return nil
	}

	if cfg.DBType == db.TypeSQLite {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("type", cfg.DBType))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("schema migrated", zap.String("type", cfg.DBType))
	return nil
}
