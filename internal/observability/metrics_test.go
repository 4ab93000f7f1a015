package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolatedPerInstance(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")

	a.RecordTransaction(StatusCommitted, "", 0.001)
	a.RecordTransaction(StatusFailed, "Custom", 0.002)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.TransactionsTotal.WithLabelValues(StatusCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.InstructionErrors.WithLabelValues("Custom")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TransactionsTotal.WithLabelValues(StatusCommitted)))
}

func TestRecordAirdropAndCommit(t *testing.T) {
	m := NewMetrics("test")
	m.RecordAirdrop(1_000_000_000)
	m.RecordAirdrop(500)
	m.RecordCommit(12, 1700000000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AirdropsTotal))
	assert.Equal(t, 1_000_000_500.0, testutil.ToFloat64(m.AirdropLamports))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.CurrentSlot))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics("test")
	m.RecordRPC("getSlot", "ok", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_rpc_requests_total{method="getSlot",status="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
