package mysql

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool settings used when the config leaves them zero.
const (
	defaultMaxOpen = 20
	defaultMaxIdle = 5
	defaultMaxLife = time.Hour
)

// Open creates a GORM *DB backed by MySQL with a connection pool.
// Pinging is deferred until after the pool limits are applied, so the
// startup check runs under the same limits as live traffic.
func Open(dsn string, maxOpen, maxIdle int, maxLife time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if maxOpen <= 0 {
		maxOpen = defaultMaxOpen
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	if maxLife <= 0 {
		maxLife = defaultMaxLife
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLife)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
