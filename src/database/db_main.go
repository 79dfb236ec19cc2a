package database

import (
	"fmt"

	"quantsystem/src/database/migrations"
	"quantsystem/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table owned by the write-side schema.
func Models() []interface{} {
	return []interface{}{
		&model.Bar{},
		&model.IndicatorRecord{},
		&model.Selection{},
		&model.Position{},
		&model.Order{},
		&model.OrderLog{},
		&model.PortfolioSnapshot{},
		&model.TradingSignal{},
		&model.Exception{},
		&migrations.DataMigration{},
	}
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// Open connects to the main read/write database and brings the schema up to date.
// It should be called once at startup and the handle passed down explicitly.
func Open(config Config) (*gorm.DB, error) {
	d, err := dialector(config.Driver, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	if config.Driver == DriverSQLite {
		// a single writer avoids "database is locked" under concurrent transactions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	logger.WithFields(map[string]interface{}{"driver": config.Driver}).Info("[database] main connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the pre-migration column fixes, AutoMigrate and the data migrations, in that order.
func Migrate(db *gorm.DB) error {
	if err := migrations.PrepareLegacyColumns(db); err != nil {
		return fmt.Errorf("failed to prepare legacy columns: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	logger.Info("[database] migrations completed")
	return nil
}
