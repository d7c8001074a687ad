package db

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	Driver          string `json:"driver"`
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// Database is the part of a connection pool the health check needs.
type Database interface {
	Ping(ctx context.Context) error
	Stats() *PoolStats
}

type pgDatabase struct {
	pool *pgxpool.Pool
}

// NewPGDatabase wraps a pgx pool for health checks.
func NewPGDatabase(pool *pgxpool.Pool) Database {
	return &pgDatabase{pool: pool}
}

func (d *pgDatabase) Ping(ctx context.Context) error { return d.pool.Ping(ctx) }

func (d *pgDatabase) Stats() *PoolStats {
	stat := d.pool.Stat()
	return &PoolStats{
		Driver:          DriverPostgres,
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

type sqlDatabase struct {
	driver string
	db     *sql.DB
}

// NewSQLDatabase wraps a database/sql handle for health checks.
func NewSQLDatabase(driver string, db *sql.DB) Database {
	return &sqlDatabase{driver: driver, db: db}
}

func (d *sqlDatabase) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *sqlDatabase) Stats() *PoolStats {
	return sqlStats(d.driver, d.db.Stats())
}

func sqlStats(driver string, stat sql.DBStats) *PoolStats {
	return &PoolStats{
		Driver:          driver,
		TotalConns:      int32(stat.OpenConnections),
		IdleConns:       int32(stat.Idle),
		AcquiredConns:   int32(stat.InUse),
		MaxConns:        int32(stat.MaxOpenConnections),
		AcquireCount:    stat.WaitCount,
		AcquireDuration: stat.WaitDuration.String(),
		Healthy:         stat.OpenConnections > 0,
	}
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(d Database) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := d.Ping(ctx)
		stats := d.Stats()

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		stats.Healthy = true
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
