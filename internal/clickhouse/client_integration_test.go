//go:build integration

package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

func startClickHouse(ctx context.Context, t *testing.T) *Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.3-alpine",
			ExposedPorts: []string{"9000/tcp", "8123/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":       "assistant_analytics",
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "secret",
			},
			WaitingFor: wait.ForHTTP("/ping").WithPort("8123/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := config.DefaultConfig().ClickHouse
	cfg.Addresses = []string{fmt.Sprintf("%s:%s", host, port.Port())}
	cfg.Username = "default"
	cfg.Password = "secret"

	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.EnsureTables(ctx))
	return client
}

func TestClient_Integration(t *testing.T) {
	ctx := context.Background()
	client := startClickHouse(ctx, t)

	now := time.Now().UTC().Truncate(time.Second)
	events := []*models.AnalyticsEvent{
		{EventType: "assistant_query", QueryHash: "a", QueryType: "find_product", Confidence: 0.9, TotalHits: 2, MatchPhase: "text", Timestamp: now, Source: "assistant"},
		{EventType: "assistant_query", QueryHash: "b", QueryType: "find_product", Confidence: 0.6, TotalHits: 0, MatchPhase: "none", Timestamp: now, Source: "assistant"},
		{EventType: "assistant_query", QueryHash: "c", QueryType: "add_product", Confidence: 0.85, Category: "Furniture", Timestamp: now, Source: "assistant"},
		{EventType: "assistant_query", QueryHash: "d", QueryType: "general", Confidence: 0.5, Timestamp: now.Add(-48 * time.Hour), Source: "assistant"},
	}
	for _, e := range events {
		require.NoError(t, client.WriteAssistantEvent(ctx, e))
	}

	t.Run("intent breakdown", func(t *testing.T) {
		counts, err := client.IntentBreakdown(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, counts, 2)

		assert.Equal(t, "find_product", counts[0].Intent)
		assert.Equal(t, int64(2), counts[0].Count)
		assert.InDelta(t, 0.75, counts[0].AvgConfidence, 1e-9)
		assert.Equal(t, int64(1), counts[0].ZeroResults)

		assert.Equal(t, "add_product", counts[1].Intent)
		assert.Equal(t, int64(0), counts[1].ZeroResults)
	})

	t.Run("query performance and changelog", func(t *testing.T) {
		require.NoError(t, client.WriteQueryPerformance(ctx, &models.AnalyticsEvent{
			EventType: "query_performance", QueryHash: "a", QueryType: "find_product",
			DurationMs: 900, TimedOut: true, Timestamp: now, Source: "assistant",
		}))
		require.NoError(t, client.InsertListingEvent(ctx, &models.ListingChangeEvent{
			Type: "UPDATE", ListingID: "l-1", Timestamp: now, Version: 3,
		}))
	})
}
