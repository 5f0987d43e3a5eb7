// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
)

// ConnectionConfig holds pool and logging settings
type ConnectionConfig struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	LogLevel           string
}

// DefaultConnectionConfig returns the default pool configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:       25,
		MaxIdleConns:       5,
		ConnMaxLifetime:    time.Hour,
		ConnMaxIdleTime:    10 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
		LogLevel:           "warn",
	}
}

// ConnectionManager owns the GORM handle and its pool
type ConnectionManager struct {
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewConnectionManager opens a pooled connection using the database section of cfg
func NewConnectionManager(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	connConfig := DefaultConnectionConfig()
	if cfg.Database.MaxOpenConns > 0 {
		connConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		connConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		connConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.LogLevel != "" {
		connConfig.LogLevel = cfg.Database.LogLevel
	}

	return Open(ctx, cfg.GetDSN(), connConfig, log)
}

// Open connects to dsn and verifies the connection with a ping
func Open(ctx context.Context, dsn string, connConfig ConnectionConfig, log *zap.Logger) (*ConnectionManager, error) {
	log = log.Named("postgres")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newGORMLogger(log, connConfig),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(connConfig.MaxOpenConns)
	sqlDB.SetMaxIdleConns(connConfig.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(connConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connConfig.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.Int("max_open_conns", connConfig.MaxOpenConns),
		zap.Int("max_idle_conns", connConfig.MaxIdleConns),
		zap.Duration("conn_max_lifetime", connConfig.ConnMaxLifetime),
	)

	return &ConnectionManager{logger: log, db: db, sqlDB: sqlDB}, nil
}

// GetDB returns the GORM handle
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// Stats returns the pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.sqlDB.Stats()
}

// HealthCheck pings the database
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close closes the pool
func (cm *ConnectionManager) Close() error {
	if err := cm.sqlDB.Close(); err != nil {
		cm.logger.Error("Failed to close database", zap.Error(err))
		return err
	}
	return nil
}

// gormLogWriter routes GORM log lines to zap
type gormLogWriter struct {
	logger *zap.Logger
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Info(fmt.Sprintf(format, args...))
}

func newGORMLogger(log *zap.Logger, connConfig ConnectionConfig) logger.Interface {
	level := logger.Silent
	switch connConfig.LogLevel {
	case "info":
		level = logger.Info
	case "warn":
		level = logger.Warn
	case "error":
		level = logger.Error
	}

	return logger.New(gormLogWriter{logger: log}, logger.Config{
		SlowThreshold:             connConfig.SlowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
