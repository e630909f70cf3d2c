package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopDeliversReasonToCallbacks(t *testing.T) {
	ctrl := New(Config{StopFile: t.TempDir() + "/stop", EnableSignalHandlers: false})

	var got StopEvent
	ctrl.OnStop(func(e StopEvent) { got = e })

	ctrl.Stop("operator abort")

	require.True(t, ctrl.IsStopped())
	assert.Equal(t, "operator abort", got.Reason)
	assert.WithinDuration(t, time.Now(), got.Triggered, time.Second)
}

func TestStopIsIdempotent(t *testing.T) {
	ctrl := New(Config{StopFile: t.TempDir() + "/stop", EnableSignalHandlers: false})

	calls := 0
	ctrl.OnStop(func(StopEvent) { calls++ })

	ctrl.Stop("first")
	ctrl.Stop("second")

	assert.Equal(t, 1, calls, "a second Stop must not re-run callbacks")
}

func TestWatchStopFileTriggersOnFileCreation(t *testing.T) {
	ctrl := New(Config{
		StopFile:     t.TempDir() + "/stop",
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl.Start(ctx)

	require.NoError(t, ctrl.CreateStopFile())

	select {
	case <-ctrl.StopChannel():
	case <-time.After(time.Second):
		t.Fatal("emergency stop was not triggered by the stop file")
	}

	assert.NoError(t, ctrl.RemoveStopFile())
}
