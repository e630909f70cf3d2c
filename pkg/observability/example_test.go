package observability_test

import (
	"context"
	"fmt"
	"time"

	"github.com/kbenson/ride-harness/pkg/observability"
)

// Example demonstrates optional metrics collection against a
// Prometheus endpoint. This requires a running Prometheus instance to
// actually collect samples; against a test environment without one it
// degrades to a connection-test failure, which is expected.
func Example() {
	client, err := observability.New(observability.Config{
		URL:     "http://localhost:9090",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Printf("Failed to create observability client: %v\n", err)
		return
	}

	ctx := context.Background()
	if err := client.TestConnection(ctx); err != nil {
		fmt.Println("Prometheus not available (this is expected in test environment)")
		return
	}

	collector := observability.NewCollector(observability.CollectorConfig{
		Client:   client,
		Interval: 15 * time.Second,
		Queries: map[string]string{
			"flow_count": "sum(onos_flows)",
		},
	})
	collector.Start(ctx)
	defer collector.Stop()

	fmt.Printf("collected %d series\n", len(collector.Series()))

	// Output: Prometheus not available (this is expected in test environment)
}
