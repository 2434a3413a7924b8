package models

import (
	"fmt"

	"telab/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB(cfg *config.Config) error {
	var dialector gorm.Dialector
	var err error

	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.SQLite.Path)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.MySQL.Username,
			cfg.Database.MySQL.Password,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.Database,
			cfg.Database.MySQL.Charset,
		)
		dialector = mysql.Open(dsn)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate models
	if err := DB.AutoMigrate(
		&User{},
		&Lab{},
		&LoginSession{},
		&Workbook{},
		&Measurement{},
		&MeasurementSession{},
		&Comment{},
		&AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := installAppendOnlyGuards(cfg.Database.Type); err != nil {
		return fmt.Errorf("failed to install append-only guards: %w", err)
	}

	return nil
}

// installAppendOnlyGuards creates triggers that reject UPDATE and DELETE on
// the measurements and audit_logs tables. The application never issues such
// statements; the triggers keep ad-hoc access honest too.
func installAppendOnlyGuards(dbType string) error {
	var stmts []string

	switch dbType {
	case "sqlite":
		for _, table := range []string{"measurements", "audit_logs"} {
			stmts = append(stmts,
				fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_no_update
					BEFORE UPDATE ON %s
					BEGIN SELECT RAISE(ABORT, '%s are append-only'); END`, table, table, table),
				fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_no_delete
					BEFORE DELETE ON %s
					BEGIN SELECT RAISE(ABORT, '%s are append-only'); END`, table, table, table),
			)
		}
	case "mysql":
		for _, table := range []string{"measurements", "audit_logs"} {
			stmts = append(stmts,
				fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_no_update
					BEFORE UPDATE ON %s FOR EACH ROW
					SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s are append-only'`, table, table, table),
				fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_no_delete
					BEFORE DELETE ON %s FOR EACH ROW
					SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s are append-only'`, table, table, table),
			)
		}
	}

	for _, stmt := range stmts {
		if err := DB.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
