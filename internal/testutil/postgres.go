// Package testutil starts a disposable Postgres with the repository
// migrations applied, for packages whose tests need a real database.
package testutil

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/shopcraft/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres is a running container plus a pool connected to it.
type Postgres struct {
	DB        *sql.DB
	container testcontainers.Container
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func StartPostgres(ctx context.Context) (*Postgres, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	pg := &Postgres{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	pg.DB, err = sql.Open("postgres", dsn)
	if err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Ping(ctx, pg.DB); err != nil {
		pg.Close(ctx)
		return nil, err
	}

	if _, err := database.Migrate(ctx, pg.DB, migrationsDir(), database.Up, nil); err != nil {
		pg.Close(ctx)
		return nil, err
	}

	return pg, nil
}

func (p *Postgres) Close(ctx context.Context) {
	if p.DB != nil {
		p.DB.Close()
	}
	if p.container != nil {
		_ = p.container.Terminate(ctx)
	}
}

var shared *Postgres

// Main starts one container for the whole test binary unless -short is set,
// runs the tests and tears the container down. Without a Docker daemon the
// database tests skip instead of failing.
func Main(m *testing.M) {
	flag.Parse()

	ctx := context.Background()
	if !testing.Short() {
		pg, err := StartPostgres(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres unavailable, database tests will skip: %v\n", err)
		} else {
			shared = pg
		}
	}

	code := m.Run()
	if shared != nil {
		shared.Close(ctx)
	}
	os.Exit(code)
}

// DB returns the shared pool with every table emptied, or skips the test
// when no database was started.
func DB(t *testing.T) *sql.DB {
	t.Helper()
	if shared == nil {
		t.Skip("postgres not available")
	}
	Reset(t, shared.DB)
	return shared.DB
}

// Reset empties every table and restarts identities so each test sees a
// fresh schema without paying for a new container.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE payment_attempts, wishlist, orders, cart_items, products, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}
