package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"token-listing-lab/internal/storage/migrations"
)

// setupTestDB starts a throwaway ClickHouse server, creates the listing
// database and applies the embedded migrations.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_SKIP_USER_SETUP": "1"},
			WaitingFor: wait.ForListeningPort("9000/tcp").
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConnCreatingDatabase(ctx, fmt.Sprintf("clickhouse://default@%s/listing", endpoint))
	require.NoError(t, err)
	require.NoError(t, migrations.RunClickhouseMigrations(ctx, conn))

	return conn, func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}
}

func ptr[T any](v T) *T { return &v }
