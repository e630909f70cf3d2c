package emergency_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kbenson/ride-harness/pkg/emergency"
	"github.com/kbenson/ride-harness/pkg/reporting"
)

// Example demonstrates driving a trial abort through the emergency
// controller: a stop-file watcher feeding a StopEvent to a teardown
// callback.
func Example() {
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError, // quiet for the example's deterministic Output
		Format: reporting.LogFormatText,
	})

	controller := emergency.New(emergency.Config{
		StopFile:             "/tmp/ride-harness-emergency-stop-test",
		PollInterval:         1 * time.Second,
		EnableSignalHandlers: false,
		Logger:               logger,
	})

	os.Remove(controller.GetStopFilePath())

	controller.OnStop(func(event emergency.StopEvent) {
		fmt.Printf("trial aborted: %s\n", event.Reason)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller.Start(ctx)

	fmt.Println("trial running, watching for an emergency stop...")

	select {
	case <-controller.StopChannel():
		fmt.Println("abort observed via StopChannel")
	case <-time.After(3 * time.Second):
		fmt.Println("trial completed its schedule without an abort")
	}

	os.Remove(controller.GetStopFilePath())

	// Output:
	// trial running, watching for an emergency stop...
	// trial completed its schedule without an abort
}
