package database

import (
	"fmt"

	"quantsystem/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenReadOnly connects to the reporting replica used by the dashboard's GET endpoints.
// It never migrates. When no replica URL is configured the main handle is returned.
func OpenReadOnly(config Config, main *gorm.DB) (*gorm.DB, error) {
	if config.DatabaseURLReadOnly == "" {
		return main, nil
	}

	d, err := dialector(config.Driver, config.DatabaseURLReadOnly)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to read-only database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from read-only database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping read-only database: %w", err)
	}

	// make sure the replica actually carries the schema before serving from it
	var count int64
	if err := db.Model(&model.Position{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to access positions on read-only database: %w", err)
	}

	logger.WithFields(map[string]interface{}{"positions": count}).Info("[database] read-only connection established")

	return db, nil
}
