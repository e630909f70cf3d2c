// Package observability provides optional Prometheus-backed metrics
// collection during a trial, grounded on the teacher's
// pkg/monitoring/prometheus client but retargeted from blockchain RPC
// metrics to controller-exposed flow/port counters (§11).
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// Client wraps the Prometheus HTTP API client.
type Client struct {
	api    v1.API
	config Config
}

// Config configures a Client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// QueryResult is one labeled sample returned by a query.
type QueryResult struct {
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
}

// New creates a client against a Prometheus endpoint.
func New(config Config) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	apiClient, err := api.NewClient(api.Config{Address: config.URL})
	if err != nil {
		return nil, fmt.Errorf("observability: create client: %w", err)
	}

	return &Client{api: v1.NewAPI(apiClient), config: config}, nil
}

// QueryLatest runs an instant query at the current time.
func (c *Client) QueryLatest(ctx context.Context, query string) ([]QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	result, warnings, err := c.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("observability: query %q: %w", query, err)
	}
	if len(warnings) > 0 {
		return nil, fmt.Errorf("observability: query %q returned warnings: %v", query, warnings)
	}

	return parseResult(result)
}

// TestConnection verifies the endpoint is reachable before a trial
// commits to polling it.
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if _, _, err := c.api.Query(ctx, "up", time.Now()); err != nil {
		return fmt.Errorf("observability: connection test failed: %w", err)
	}
	return nil
}

func parseResult(value model.Value) ([]QueryResult, error) {
	var results []QueryResult

	switch v := value.(type) {
	case model.Vector:
		for _, sample := range v {
			results = append(results, QueryResult{
				Timestamp: sample.Timestamp.Time(),
				Value:     float64(sample.Value),
				Labels:    metricToMap(sample.Metric),
			})
		}
	case *model.Scalar:
		results = append(results, QueryResult{
			Timestamp: v.Timestamp.Time(),
			Value:     float64(v.Value),
			Labels:    map[string]string{},
		})
	default:
		return nil, fmt.Errorf("observability: unsupported result type %T", value)
	}

	return results, nil
}

func metricToMap(m model.Metric) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return out
}
