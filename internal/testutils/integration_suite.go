package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"labelflow/internal/config"
)

type IntegrationSuite struct {
	T     *testing.T
	DB    *sql.DB
	Redis *redis.Client
	NSQ   *nsq.Producer

	pgHost    string
	pgPort    int
	redisAddr string
	nsqdAddr  string
	nsqdHTTP  string

	// Containers
	pgContainer    *postgres.PostgresContainer
	redisContainer testcontainers.Container
	nsqContainer   testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("labelflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	s.pgHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgPort = pgPort.Int()

	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	// 2. Redis
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.redisContainer = redisC
	s.redisAddr, err = redisC.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(s.T, err)
	s.Redis = redis.NewClient(&redis.Options{Addr: s.redisAddr})

	// 3. NSQ
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC
	s.nsqdAddr, err = nsqC.PortEndpoint(ctx, "4150/tcp", "")
	require.NoError(s.T, err)
	s.nsqdHTTP, err = nsqC.PortEndpoint(ctx, "4151/tcp", "")
	require.NoError(s.T, err)

	s.NSQ, err = nsq.NewProducer(s.nsqdAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a configuration pointing at the suite's containers.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:                     s.pgHost,
		DBPort:                     s.pgPort,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "labelflow_test",
		RedisAddr:                  s.redisAddr,
		NSQDHost:                   s.nsqdAddr,
		NSQDHTTP:                   s.nsqdHTTP,
		NSQLookupd:                 "",
		EnableAPI:                  true,
		EnableAssignmentWorker:     true,
		AssignmentConcurrency:      1,
		AssignmentMaxAttempts:      3,
		MigrationPath:              MigrationPath(),
		DefaultProvider:            "gemini",
		DefaultModel:               "gemini-1.5-flash",
		CompletionTimeout:          10 * time.Second,
		SessionTTL:                 time.Hour,
		SessionSweepInterval:       time.Minute,
		WorkerPoolCacheTTL:         time.Minute,
		MaxCSVSizeMB:               1,
		ServerPort:                 8081,
		GenerationLogPath:          filepath.Join(s.T.TempDir(), "generation.log"),
		CORSAllowedOrigins:         "*",
		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

// MigrationPath is the file:// URL of the repository's migrations.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.redisContainer != nil {
		s.redisContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
