package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &HTTPMetrics{
		meter:  mp.Meter(httpInstrumentationName),
		logger: zap.NewNop(),
	}
	m.init()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/v1/conversations/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return c.String(http.StatusOK, "ok")
	})

	for _, target := range []string{"/v1/conversations/a", "/v1/conversations/b", "/v1/conversations/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[int]int64{}
	var durations uint64
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			switch mt.Name {
			case "expertd.http.requests_total":
				sum, ok := mt.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value(attribute.Key("route"))
					assert.Equal(t, "/v1/conversations/:id", route.AsString())
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					counts[int(status.AsInt64())] += dp.Value
				}
			case "expertd.http.request_duration_seconds":
				hist, ok := mt.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					durations += dp.Count
				}
			}
		}
	}

	assert.Equal(t, map[int]int64{http.StatusOK: 2, http.StatusNotFound: 1}, counts)
	assert.Equal(t, uint64(3), durations)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/v1/ask", routeLabel("/v1/ask"))
}
