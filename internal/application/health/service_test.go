package health

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectHealth_WithNilDeps(t *testing.T) {
	result := CollectHealth(context.Background(), nil, nil, "")
	assert.Equal(t, "issue", result.Status)
	assert.Equal(t, "disconnected", result.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", result.Dependencies["redis"].Status)
	assert.Equal(t, "embedded", result.Dependencies["ledger"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
}

func TestCollectHealth_WithMiniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	result := CollectHealth(ctx, rdb, nil, "")
	assert.Equal(t, "connected", result.Dependencies["redis"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
	assert.Equal(t, "100", result.Traffic.SuccessRate)

	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:start_time", "1000000", 0).Err())

	result2 := CollectHealth(ctx, rdb, nil, "")
	assert.Equal(t, 10, result2.Traffic.TotalRequests)
	assert.Equal(t, 2, result2.Traffic.FailedCount)
	assert.Equal(t, 8, result2.Traffic.SuccessCount)
	assert.Equal(t, "80.0", result2.Traffic.SuccessRate)
	assert.Equal(t, "15.05", result2.Traffic.AvgResponseTime)
}

func TestCollectHealth_UnreachableLedger(t *testing.T) {
	result := CollectHealth(context.Background(), nil, nil, "http://127.0.0.1:1")
	assert.Equal(t, "unreachable", result.Dependencies["ledger"].Status)
	assert.Equal(t, "issue", result.Status)
}

func TestRenderDashboardHTML(t *testing.T) {
	result := CollectHealth(context.Background(), nil, nil, "")
	html := RenderDashboardHTML(result)
	assert.True(t, strings.Contains(html, "Harbor API"))
	assert.True(t, strings.Contains(html, "issue"))
	assert.True(t, strings.Contains(html, "database"))
}

func TestRenderDashboardHTML_DownDependencyPing(t *testing.T) {
	// No database pinger: the row must show a dash, never a stray pointer.
	result := CollectHealth(context.Background(), nil, nil, "")
	require.Nil(t, result.Dependencies["database"].PingMs)

	html := RenderDashboardHTML(result)
	assert.True(t, strings.Contains(html, "<td>-</td>"))
	assert.False(t, strings.Contains(html, "nil"))

	ms := int64(7)
	result.Dependencies["database"] = DepStatus{Status: "connected", PingMs: &ms}
	html = RenderDashboardHTML(result)
	assert.True(t, strings.Contains(html, "7 ms"))
}
