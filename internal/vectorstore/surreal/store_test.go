// Package surreal integration tests run against a disposable SurrealDB
// container. Run with -short to skip them.
package surreal

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"askvid/internal/vectorstore"
)

const testDimension = 4

var testStore *Store

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	testStore, err = NewStore(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
		Dimension: testDimension,
	}, nil)
	if err != nil {
		log.Fatalf("connect to test database: %v", err)
	}

	code := m.Run()

	_ = testStore.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func requireStore(t *testing.T) *Store {
	t.Helper()
	if testStore == nil {
		t.Skip("skipping integration test in short mode")
	}
	return testStore
}

func vec(values ...float32) []float32 {
	v := make([]float32, testDimension)
	copy(v, values)
	return v
}

func testItems() []vectorstore.Item {
	return []vectorstore.Item{
		{ID: "vid1:0", Vector: vec(1, 0, 0, 0), Text: "Cats sleep most of the day.", Metadata: map[string]any{"index": 0, "start_seconds": 0.0}},
		{ID: "vid1:1", Vector: vec(0, 1, 0, 0), Text: "Dogs need daily walks.", Metadata: map[string]any{"index": 1, "start_seconds": 30.0}},
		{ID: "vid1:2", Vector: vec(0.9, 0.1, 0, 0), Text: "Kittens sleep even more than cats.", Metadata: map[string]any{"index": 2, "start_seconds": 60.0}},
	}
}

func TestUpsertAndQuery(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Upsert(ctx, "vid1", testItems()))

	results, err := store.Query(ctx, "vid1", vec(1, 0, 0, 0), 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "Cats sleep most of the day.", results[0].Text, "exact vector match should rank first")
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0, "score must be non-negative")
		assert.LessOrEqual(t, r.Score, 1.0, "score must not exceed 1")
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score, "scores must descend")
		}
	}
	assert.InDelta(t, 1.0, results[0].Score, 0.001, "identical vector scores 1.0")
}

func TestUpsertOverwrites(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	item := vectorstore.Item{ID: "vid2:0", Vector: vec(0, 0, 1, 0), Text: "first version"}
	require.NoError(t, store.Upsert(ctx, "vid2", []vectorstore.Item{item}))

	item.Text = "second version"
	require.NoError(t, store.Upsert(ctx, "vid2", []vectorstore.Item{item}))

	count, err := store.Count(ctx, "vid2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same ID should overwrite, not duplicate")

	results, err := store.Query(ctx, "vid2", vec(0, 0, 1, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Text)
}

func TestNamespaceIsolation(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Upsert(ctx, "vid3", []vectorstore.Item{
		{ID: "vid3:0", Vector: vec(1, 0, 0, 0), Text: "video three"},
	}))
	require.NoError(t, store.Upsert(ctx, "vid4", []vectorstore.Item{
		{ID: "vid4:0", Vector: vec(1, 0, 0, 0), Text: "video four"},
	}))

	results, err := store.Query(ctx, "vid3", vec(1, 0, 0, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "video three", results[0].Text, "query must not cross videos")
}

func TestQueryMissingNamespace(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := store.Query(ctx, "never-indexed", vec(1, 0, 0, 0), 4)
	assert.Error(t, err, "querying an unknown video must fail")
}

func TestNamespaceExistsAndCount(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Upsert(ctx, "vid5", testItems()[:2]))

	exists, err := store.NamespaceExists(ctx, "vid5")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := store.Count(ctx, "vid5")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	exists, err = store.NamespaceExists(ctx, "vid6")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err = store.Count(ctx, "vid6")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWipeData(t *testing.T) {
	store := requireStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Upsert(ctx, "vid7", testItems()))
	require.NoError(t, store.WipeData(ctx))

	count, err := store.Count(ctx, "vid7")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
