package app

import (
	"context"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Database started", "driver", cfg.Database.Driver)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func NewStore(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) *store.Store {
	return store.New(db, log)
}
