package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/config"
	"turnos/internal/logger"
	"turnos/internal/models"
)

func Open(cfg *config.Config, lg *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "mysql":
		dialector = mysql.Open(withParseTime(cfg.DatabaseURL))
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.NewGorm(lg, cfg.LogLevel == "debug"),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// withParseTime makes the MySQL driver scan DATETIME columns into time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true&charset=utf8mb4"
}

func Migrate(db *gorm.DB) error {
	return models.Migrate(db)
}

// SeedAdmin creates the bootstrap administrator unless an admin already exists.
func SeedAdmin(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.Account{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	a := models.Account{
		Username:     cfg.AdminUsername,
		Email:        strings.ToLower(cfg.AdminEmail),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&a).Error; err != nil {
		return err
	}
	lg.Infow("seeded default admin", "username", a.Username)
	return nil
}
