package prom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(srv.URL, "", 100, 5*time.Second), srv
}

func TestQueryInstant(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "up", r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"pod":"web-1"},"value":[1756641600,"1.5"]},
			{"metric":{"pod":"web-2"},"value":[1756641600,"2.5"]}
		]}}`)
	})
	defer srv.Close()

	samples, err := c.QueryInstant(context.Background(), "up")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1.5, samples[0].Value)
	assert.Equal(t, "web-1", samples[0].Labels["pod"])
}

func TestQueryRangeParsesSeries(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query_range", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("step"))
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"pod":"web-1"},"values":[[1756641600,"1"],[1756641660,"2"]]}
		]}}`)
	})
	defer srv.Close()

	end := time.Now()
	series, err := c.QueryRange(context.Background(), "rate(x[5m])", end.Add(-time.Hour), end, 0)
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, 1.0, series[0].Points[0].Value)
	assert.Equal(t, 2.0, series[0].Points[1].Value)
	assert.True(t, series[0].Points[0].Timestamp.Before(series[0].Points[1].Timestamp))
}

func TestQueryRangeSortsSeriesDeterministically(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"pod":"zeta"},"values":[[1756641600,"1"]]},
			{"metric":{"pod":"alpha"},"values":[[1756641600,"2"]]}
		]}}`)
	})
	defer srv.Close()

	end := time.Now()
	series, err := c.QueryRange(context.Background(), "x", end.Add(-time.Hour), end, 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "alpha", series[0].Labels["pod"])
	assert.Equal(t, "zeta", series[1].Labels["pod"])
}

func TestQueryErrorClassification(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","errorType":"bad_data","error":"parse error"}`)
	})
	defer srv.Close()

	_, err := c.QueryInstant(context.Background(), "bad{")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindQueryError))
}

func TestAuthErrorClassification(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := c.QueryInstant(context.Background(), "up")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindAuth))
}

func TestBearerTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", 100, 5*time.Second)
	_, err := c.QueryInstant(context.Background(), "up")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestHealthy(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-/healthy" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	assert.True(t, c.Healthy(context.Background()))
}

func TestHealthyFalseOnRefusedConnection(t *testing.T) {
	c := New("http://127.0.0.1:1", "", 100, time.Second)
	assert.False(t, c.Healthy(context.Background()))
}

func TestFirstSeriesPointsSanitizes(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{},"values":[[1756641600,"1"],[1756641660,"NaN"],[1756641720,"3"]]}
		]}}`)
	})
	defer srv.Close()

	end := time.Now()
	points, dropped, err := c.FirstSeriesPoints(context.Background(), "x", end.Add(-time.Hour), end)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, points, 2)
	assert.Equal(t, 3.0, points[1].Value)
}

func TestFirstSeriesPointsNoSeries(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[]}}`)
	})
	defer srv.Close()

	end := time.Now()
	points, dropped, err := c.FirstSeriesPoints(context.Background(), "x", end.Add(-time.Hour), end)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Empty(t, points)
}

func TestAutoStepFloor(t *testing.T) {
	c := New("http://example", "", 100, time.Second)
	end := time.Now()
	// A 10 minute window with 100 points would be 6s; the floor is 15s.
	assert.Equal(t, 15*time.Second, c.autoStep(end.Add(-10*time.Minute), end))
	// A 100 hour window yields an hour-scale step.
	assert.Equal(t, time.Hour, c.autoStep(end.Add(-100*time.Hour), end))
}
