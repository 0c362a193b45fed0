package migration

import (
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/store/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "sqlite" {
			// The embedded SQL migrations target sqlite. Other dialects
			// rely on the schema derived from the models.
			return conn.AutoMigrate(
				&domain.Store{},
				&domain.Coupon{},
				&domain.PartialURL{},
				&domain.ScrapedDomain{},
				&domain.CouponUsageReport{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
