package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("artifacts", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUp}
	})
	c.Register("redis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "cache bypassed"}
	})
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Len(t, report.Components, 2)

	c.Register("content", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown}
	})
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("artifacts", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown, Message: "no generation loaded"}
	})
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "no generation loaded", report.Components["artifacts"].Message)

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPingAndGeneration(t *testing.T) {
	c := NewChecker()
	c.ReportGeneration(func() uint64 { return 4 })
	c.Register("content", Ping(func(context.Context) error { return nil }, StatusDown))
	c.Register("redis", Ping(func(context.Context) error { return errors.New("connection refused") }, StatusDegraded))

	report := c.Run(context.Background())
	assert.Equal(t, uint64(4), report.Generation)
	assert.Equal(t, StatusUp, report.Components["content"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
	assert.Equal(t, StatusDegraded, report.Status)

	// a degraded cache does not take the searcher out of rotation
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
