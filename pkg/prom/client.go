// Package prom is the metrics source: a thin client for the Prometheus HTTP
// API supporting instant and range queries. Failures are classified into the
// structured error kinds, and timeouts are retried once within the caller's
// remaining budget.
package prom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

type Client struct {
	baseURL   string
	token     string
	hc        *http.Client
	maxPoints int
}

// New builds a Prometheus client. maxPoints drives automatic step selection
// for range queries so a window returns roughly that many samples.
func New(baseURL, bearerToken string, maxPoints int, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     bearerToken,
		hc:        &http.Client{Timeout: timeout},
		maxPoints: maxPoints,
	}
}

// Series is one time series returned by a range query.
type Series struct {
	Labels map[string]string         `json:"labels"`
	Points []analysis.TimeSeriesPoint `json:"points"`
}

// InstantSample is one sample returned by an instant query.
type InstantSample struct {
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// apiResponse mirrors the Prometheus HTTP API envelope.
type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value,omitempty"`
			Values [][]any           `json:"values,omitempty"`
		} `json:"result"`
	} `json:"data"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// QueryInstant executes an instant PromQL query.
func (c *Client) QueryInstant(ctx context.Context, query string) ([]InstantSample, error) {
	params := url.Values{}
	params.Set("query", query)

	resp, err := c.request(ctx, "/api/v1/query", params)
	if err != nil {
		return nil, err
	}

	samples := make([]InstantSample, 0, len(resp.Data.Result))
	for _, r := range resp.Data.Result {
		if len(r.Value) < 2 {
			continue
		}
		v, ok := parseSampleValue(r.Value[1])
		if !ok {
			continue
		}
		samples = append(samples, InstantSample{Labels: r.Metric, Value: v})
	}
	return samples, nil
}

// QueryRange executes a range query. A zero step picks one automatically so
// the window yields about maxPoints samples per series (15s floor).
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]Series, error) {
	if step <= 0 {
		step = c.autoStep(start, end)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.FormatInt(int64(step.Seconds()), 10))

	resp, err := c.request(ctx, "/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}

	series := make([]Series, 0, len(resp.Data.Result))
	for _, r := range resp.Data.Result {
		points := make([]analysis.TimeSeriesPoint, 0, len(r.Values))
		for _, pair := range r.Values {
			if len(pair) < 2 {
				continue
			}
			ts, tok := pair[0].(float64)
			v, vok := parseSampleValue(pair[1])
			if !tok || !vok {
				continue
			}
			points = append(points, analysis.TimeSeriesPoint{
				Timestamp: time.Unix(int64(ts), 0).UTC(),
				Value:     v,
			})
		}
		series = append(series, Series{Labels: r.Metric, Points: points})
	}

	// Deterministic series order regardless of server response order.
	sort.Slice(series, func(i, j int) bool {
		return labelsKey(series[i].Labels) < labelsKey(series[j].Labels)
	})
	return series, nil
}

// FirstSeriesPoints runs a range query and returns the samples of the first
// series, already sanitized for the trend engine. Intended for aggregate
// queries (sum(...)) that produce a single series.
func (c *Client) FirstSeriesPoints(ctx context.Context, query string, start, end time.Time) ([]analysis.TimeSeriesPoint, int, error) {
	series, err := c.QueryRange(ctx, query, start, end, 0)
	if err != nil {
		return nil, 0, err
	}
	if len(series) == 0 {
		return nil, 0, nil
	}
	points, dropped := analysis.SanitizeSeries(series[0].Points)
	return points, dropped, nil
}

// Healthy reports whether the Prometheus endpoint responds on /-/healthy.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/-/healthy", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// request performs a GET against the API, retrying once when the first
// attempt times out and the context still has budget.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	resp, err := c.requestOnce(ctx, endpoint, params)
	if err != nil && types.IsKind(err, types.KindTimeout) && ctx.Err() == nil {
		resp, err = c.requestOnce(ctx, endpoint, params)
	}
	return resp, err
}

func (c *Client) requestOnce(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewError(types.KindInternal, "building Prometheus request: %v", err)
	}
	c.setHeaders(req)

	httpResp, err := c.hc.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, types.NewError(types.KindTimeout, "Prometheus request timed out")
		}
		return nil, &types.ObserverError{
			Kind:    types.KindInternal,
			Message: "failed to reach Prometheus",
			Detail:  err.Error(),
		}
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, types.NewError(types.KindAuth, "Prometheus rejected credentials (HTTP %d)", httpResp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, types.NewError(types.KindInternal, "decoding Prometheus response: %v", err)
	}

	if decoded.Status != "success" {
		return nil, &types.ObserverError{
			Kind:    types.KindQueryError,
			Message: fmt.Sprintf("Prometheus query failed (%s)", decoded.ErrorType),
			Detail:  decoded.Error,
		}
	}
	return &decoded, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) autoStep(start, end time.Time) time.Duration {
	total := end.Sub(start)
	if total <= 0 || c.maxPoints <= 0 {
		return 15 * time.Second
	}
	step := total / time.Duration(c.maxPoints)
	if step < 15*time.Second {
		step = 15 * time.Second
	}
	return step.Truncate(time.Second)
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

func parseSampleValue(raw any) (float64, bool) {
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func labelsKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
