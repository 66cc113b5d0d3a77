package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// Client wraps the shared GORM connection.
type Client struct {
	conn      *gorm.DB
	txRetries int
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens postgres, or SQLite when useSQLite is set (local development),
// and applies the pool limits from cfg.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	dialector := postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	if useSQLite {
		dialector = sqlite.Open(cfg.DSN)
	}
	conn, err := gorm.Open(dialector, gormConfig(logg, cfg.SlowQuery))
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	for _, apply := range []func(){
		func() { pool.SetMaxOpenConns(cfg.MaxOpenConns) },
		func() { pool.SetMaxIdleConns(cfg.MaxIdleConns) },
		func() { pool.SetConnMaxLifetime(cfg.ConnMaxLifetime) },
		func() { pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime) },
	} {
		apply()
	}

	logg.Info(logg.WithField(ctx, "driver", dialector.Name()), "db.connected")
	return &Client{conn: conn, txRetries: max(cfg.TxRetries, 0)}, nil
}

// Wrap adopts an already opened connection, mostly for tests.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func gormConfig(logg *logger.Logger, slow time.Duration) *gorm.Config {
	level := gormlogger.Warn
	if logg == nil {
		level = gormlogger.Silent
	}
	return &gorm.Config{
		Logger: gormlogger.New(gormWriter{logg}, gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// gormWriter forwards gorm's slow query and error lines to the service
// logger at warn level.
type gormWriter struct{ logg *logger.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	ctx := w.logg.WithField(context.Background(), "sql", fmt.Sprintf(format, args...))
	w.logg.Warn(ctx, "db.query")
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// SQL exposes the pooled database/sql handle (goose needs it).
func (c *Client) SQL() (*sql.DB, error) {
	return c.conn.DB()
}

// Dialect names the active driver ("postgres" or "sqlite").
func (c *Client) Dialect() string {
	return c.conn.Dialector.Name()
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a transaction. fn's error or panic rolls back. When
// postgres aborts the transaction with a serialization failure or deadlock
// the whole of fn is replayed, up to the configured retry count, so fn must
// not have side effects outside tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.conn.WithContext(ctx).Transaction(fn)
		if err == nil || attempt >= c.txRetries || !transient(err) || ctx.Err() != nil {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
	}
}

func transient(err error) bool {
	return pkgerrors.Dump(err).DB.Transient()
}
