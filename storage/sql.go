package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raykavin/launchwatch/core"
)

// SQLStorage implements core.OrderStorage on a SQL database via GORM.
// It is the alternative order backend for deployments that want orders
// queryable with plain SQL.
type SQLStorage struct {
	db *gorm.DB
}

// SQLConfig holds the configuration for SQL database connections
type SQLConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLConfig returns a default configuration for SQL connections
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a SQLite-backed order storage
func NewFromSQLite(dbPath string, config SQLConfig, opts ...gorm.Option) (*SQLStorage, error) {
	return newFromSQL(sqlite.Open(dbPath), config, opts...)
}

func newFromSQL(dialect gorm.Dialector, config SQLConfig, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&core.Order{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// CreateOrder creates a new order in the SQL database
func (s *SQLStorage) CreateOrder(ctx context.Context, order *core.Order) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(order); result.Error != nil {
		return fmt.Errorf("failed to create order: %w", result.Error)
	}
	return nil
}

// UpdateOrder updates an existing order in the SQL database
func (s *SQLStorage) UpdateOrder(ctx context.Context, order *core.Order) error {
	tx := s.db.WithContext(ctx)

	var existing core.Order
	if result := tx.First(&existing, order.ID); result.Error != nil {
		return fmt.Errorf("order not found: %w", result.Error)
	}

	if result := tx.Save(order); result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}

	return nil
}

// Orders retrieves orders matching every provided filter
func (s *SQLStorage) Orders(ctx context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	tx := s.db.WithContext(ctx)

	var orders []*core.Order
	if result := tx.Find(&orders); result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to fetch orders: %w", result.Error)
	}

	if len(filters) > 0 {
		orders = lo.Filter(orders, func(order *core.Order, _ int) bool {
			for _, filter := range filters {
				if !filter(*order) {
					return false
				}
			}
			return true
		})
	}

	return orders, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
