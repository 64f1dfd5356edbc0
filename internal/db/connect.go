package db

import (
	"context"
	"errors"
	"fmt"
	"net"

	godriver "database/sql/driver"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/marchhare/agileboard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStoreUnavailable marks a backing-store timeout or outage. It is
// surfaced to callers, never retried inside this core.
var ErrStoreUnavailable = errors.New("store unavailable")

// DSN builds a MySQL DSN from database settings.
func DSN(c config.DatabaseConfig) string {
	cred := c.User
	if c.Password != "" {
		cred += ":" + c.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", cred, c.Host, c.Port, c.Name)
}

// Connect opens a GORM connection per the configured driver: a local
// SQLite file or a MySQL server.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Database.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", cfg.Database.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(cfg.Database)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w",
				cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, wrapUnavailable(err))
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Database.Driver)
	}
}

// IsUnavailable reports whether err indicates the store timed out or the
// connection is gone, as opposed to a query-level failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, godriver.ErrBadConn) ||
		errors.Is(err, gomysql.ErrInvalidConn) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func wrapUnavailable(err error) error {
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
