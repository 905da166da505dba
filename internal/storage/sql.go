package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitSQL 打开 postgres（lib/pq）或 sqlite（modernc.org/sqlite）。
func InitSQL(driver, dsn string) error {
	var err error
	switch driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported sql driver %q", driver)
	}
	DB, err = sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	if driver == "sqlite" {
		// sqlite 单写者
		DB.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return DB.PingContext(ctx)
}
