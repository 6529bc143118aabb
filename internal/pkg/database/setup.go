package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GormConfig is shared by the server and the repository tests. Timestamps are
// stored in UTC and unique violations surface as gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// DSN builds the MySQL data source name from the environment.
func DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

func SetupDatabase() {
	var err error
	dsn := DSN()

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,   // data source name
			DefaultStringSize:         256,   // default size for string fields
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), GormConfig())
		if err == nil {
			if env.GetEnv("DB_AUTO_MIGRATE", "false") == "true" {
				if mErr := AutoMigrate(DB); mErr != nil {
					log.Printf("Auto migration failed: %v", mErr)
				}
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// AutoMigrate creates the ledger tables. Production schemas come from the
// SQL files in migrations/; this is used by tests and local development.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ProcessedEvent{},
		&models.Run{},
		&models.Receipt{},
		&models.DeadLetter{},
	)
}

// GetDB returns the shared connection opened by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// Ping checks that the database answers within the context deadline.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
