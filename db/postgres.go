package db

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"votematch/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres opens a gorm connection, pings it and migrates the given models
func OpenPostgres(ctx context.Context, dsn string, log *logger.Logger, models ...interface{}) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if len(models) > 0 {
		if err := gdb.WithContext(ctx).AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	log.Info("connected to postgres", "tables", len(models))
	return gdb, nil
}
