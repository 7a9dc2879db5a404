package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
)

// Options locates the history database.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN renders the options for the driver: utf8mb4, UTC, DATETIME parsed into time.Time.
func (o Options) DSN() string {
	c := gomysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Timeout = 5 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Connect opens a pool sized for history traffic (one write per finished analysis).
func Connect(ctx context.Context, opts Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", opts.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s/%s: %w", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)), opts.Name, err)
	}
	return db, nil
}
