package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-imagekv/internal/infra/telemetry"
)

func TestMetrics_ObserveCommand(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.ObserveCommand("ROTATE", "ok", 10*time.Millisecond)
	m.ObserveCommand("ROTATE", "ok", 20*time.Millisecond)
	m.ObserveCommand("TYPE", "error", time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "imagekv_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	done := m.TrackInflight()
	done()

	rec := httptest.NewRecorder()
	telemetry.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `imagekv_commands_total{command="ROTATE",outcome="ok"} 2`)
}

func TestMetrics_Nil(t *testing.T) {
	t.Parallel()

	var m *telemetry.Metrics

	assert.NotPanics(t, func() {
		m.ObserveCommand("ROTATE", "ok", time.Second)
		m.ObserveBlob("in", 10)
		m.TrackInflight()()
	})
}
