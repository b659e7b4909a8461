//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

// validTableNameRe matches valid MySQL identifier names.
// MySQL identifier rules: letters, digits, underscore, dollar sign; must not start with a digit.
var validTableNameRe = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

// MySQLContainer wraps a testcontainers MySQL instance with helper methods
// for exercising the rule storage layer against a real server.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	db        *sql.DB
	dsn       string
}

// MySQLConfig holds configuration for MySQL container creation.
type MySQLConfig struct {
	// Database name (default: "adrules_test")
	Database string
	// Username for non-root user (default: "adrules")
	Username string
	// Password for non-root user (default: "adrules")
	Password string
	// Scripts to execute on startup (path to .sql files)
	InitScripts []string
}

// DefaultMySQLConfig returns a MySQLConfig with sensible defaults.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Database: "adrules_test",
		Username: "adrules",
		Password: "adrules",
	}
}

// NewMySQLContainer creates and starts a MySQL container with the given config.
// If config is nil, uses DefaultMySQLConfig().
func NewMySQLContainer(ctx context.Context, config *MySQLConfig) (*MySQLContainer, error) {
	if config == nil {
		defaultCfg := DefaultMySQLConfig()
		config = &defaultCfg
	}

	opts := []testcontainers.ContainerCustomizer{
		mysql.WithDatabase(config.Database),
		mysql.WithUsername(config.Username),
		mysql.WithPassword(config.Password),
	}
	for _, script := range config.InitScripts {
		opts = append(opts, mysql.WithScripts(script))
	}

	// mysql.RunContainer already waits for the server to be ready.
	mysqlContainer, err := mysql.RunContainer(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start MySQL container: %w", err)
	}

	// parseTime is required by the gorm mysql driver for timestamp columns.
	connStr, err := mysqlContainer.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
	if err != nil {
		// Use background context for cleanup so it succeeds even if parent ctx expired.
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := sql.Open("mysql", connStr)
	if err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLContainer{
		container: mysqlContainer,
		db:        db,
		dsn:       connStr,
	}, nil
}

// GetDB returns the database connection. This connection is shared across tests
// in the same package and should not be closed by individual tests.
func (c *MySQLContainer) GetDB(t *testing.T) *sql.DB {
	t.Helper()
	if c.db == nil {
		t.Fatal("database connection is nil")
	}
	return c.db
}

// DB returns the database connection without requiring a *testing.T.
// Useful in TestMain where no *testing.T is available.
func (c *MySQLContainer) DB() *sql.DB {
	return c.db
}

// GetDSN returns the MySQL DSN (connection string) for the container.
func (c *MySQLContainer) GetDSN() string {
	return c.dsn
}

// isValidTableName validates that a table name contains only safe characters.
func isValidTableName(name string) bool {
	if name == "" {
		return false
	}
	return validTableNameRe.MatchString(name)
}

// Reset truncates the given tables with foreign key checks disabled,
// resetting rule and history state between tests.
func (c *MySQLContainer) Reset(ctx context.Context, tables []string) error {
	if c.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	for _, table := range tables {
		if !isValidTableName(table) {
			return fmt.Errorf("invalid table name: %s", table)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return fmt.Errorf("failed to enable foreign key checks: %w", err)
	}

	return tx.Commit()
}

// Terminate stops and removes the MySQL container, closing the database
// connection first.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			fmt.Printf("Warning: failed to close database connection: %v\n", err)
		}
		c.db = nil
	}

	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}

	return nil
}
