package db

import (
	"fmt"
	"strconv"

	"github.com/smith3v/wx-reminder/pkg/config"
	"github.com/smith3v/wx-reminder/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}

	var err error
	switch cfg.Type {
	case "sqlite":
		DB, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{Logger: gormLogger})
	case "postgres":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	default:
		return fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}

	if err := DB.AutoMigrate(&Reminder{}, &ReminderAssignment{}, &DeliveryLog{}); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return err
	}
	return nil
}
