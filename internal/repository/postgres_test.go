package repository_test

import (
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/nikolayk812/storefront-state/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type postgresBackendSuite struct {
	suite.Suite

	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	backend   port.Backend
}

// entry point to run the tests in the suite
func TestPostgresBackendSuite(t *testing.T) {
	suite.Run(t, new(postgresBackendSuite))
}

// before all tests in the suite
func (suite *postgresBackendSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)
	suite.container, connStr, err = startPostgres(ctx)
	suite.Require().NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.Require().NoError(err)

	suite.backend, err = repository.NewPostgres(suite.pool, "tests")
	suite.Require().NoError(err)
}

// after all tests in the suite
func (suite *postgresBackendSuite) TearDownSuite() {
	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(suite.T().Context()))
	}
}

func (suite *postgresBackendSuite) TestSetGet() {
	defer suite.deleteAll()

	tests := []struct {
		name      string
		key       string
		value     string
		wantError string
	}{
		{
			name:  "set new key: ok",
			key:   gofakeit.UUID(),
			value: `{"a":1}`,
		},
		{
			name:  "set empty value: ok",
			key:   gofakeit.UUID(),
			value: "",
		},
		{
			name:      "set empty key: error",
			key:       "",
			value:     "x",
			wantError: "key is empty",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			err := suite.backend.Set(ctx, tt.key, tt.value, "tab-1")
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			got, ok, err := suite.backend.Get(ctx, tt.key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func (suite *postgresBackendSuite) TestOverwriteAndDelete() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()
	key := gofakeit.UUID()

	require.NoError(t, suite.backend.Set(ctx, key, "first", "tab-1"))
	require.NoError(t, suite.backend.Set(ctx, key, "second", "tab-1"))

	got, ok, err := suite.backend.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got)

	require.NoError(t, suite.backend.Delete(ctx, key, "tab-1"))
	_, ok, err = suite.backend.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting an absent key is not an error
	require.NoError(t, suite.backend.Delete(ctx, key, "tab-1"))
}

func (suite *postgresBackendSuite) TestNamespacesAreIsolated() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	other, err := repository.NewPostgres(suite.pool, "other")
	require.NoError(t, err)

	require.NoError(t, suite.backend.Set(ctx, "cart", "[]", "tab-1"))

	_, ok, err := other.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (suite *postgresBackendSuite) TestWatch() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	var (
		mu     sync.Mutex
		events []domain.StorageEvent
	)
	stop, err := suite.backend.Watch(ctx, func(e domain.StorageEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, suite.backend.Set(ctx, "cart", `[{"id":"p1"}]`, "tab-2"))
	require.NoError(t, suite.backend.Delete(ctx, "cart", "tab-2"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.StorageEvent{Key: "cart", Origin: "tab-2"}, events[0])
	assert.Equal(t, domain.StorageEvent{Key: "cart", Deleted: true, Origin: "tab-2"}, events[1])
}

func (suite *postgresBackendSuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(), "TRUNCATE TABLE kv_entries")
	suite.NoError(err)
}
