package emergency

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kbenson/ride-harness/pkg/reporting"
)

// StopEvent describes one emergency stop: why it fired and when. It is
// handed to every registered callback instead of a bare signal so
// teardown code has enough context to log and report the abort without
// reaching back into the controller.
type StopEvent struct {
	Reason    string
	Triggered time.Time
}

// Controller watches for an operator-issued emergency stop — either a
// sentinel file appearing on disk or SIGINT/SIGTERM — and fans the
// event out to every registered callback. This is the escape hatch a
// trial operator reaches for when a running trial needs to abort
// immediately and fall through to teardown rather than finish its
// scheduled fault timeline (§4.8).
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	mutex          sync.RWMutex
	callbacks      []func(StopEvent)
	pollInterval   time.Duration
	signalHandlers bool
	log            *reporting.Logger
}

// Config contains emergency controller configuration.
type Config struct {
	// StopFile is the path to watch for emergency stop.
	StopFile string

	// PollInterval for checking stop file.
	PollInterval time.Duration

	// EnableSignalHandlers enables SIGINT/SIGTERM handling.
	EnableSignalHandlers bool

	// Logger receives structured emergency-stop events. A default
	// text-format stdout logger is used when nil.
	Logger *reporting.Logger
}

// New creates a new emergency controller.
func New(config Config) *Controller {
	if config.StopFile == "" {
		config.StopFile = "/tmp/ride-harness-emergency-stop"
	}

	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = reporting.NewLogger(reporting.LoggerConfig{
			Level:  reporting.LogLevelInfo,
			Format: reporting.LogFormatText,
		})
	}

	return &Controller{
		stopFile:       config.StopFile,
		stopCh:         make(chan struct{}),
		callbacks:      make([]func(StopEvent), 0),
		pollInterval:   config.PollInterval,
		signalHandlers: config.EnableSignalHandlers,
		log:            logger.WithField("component", "emergency"),
	}
}

// Start begins monitoring for emergency stop conditions.
func (c *Controller) Start(ctx context.Context) {
	go c.watchStopFile(ctx)

	if c.signalHandlers {
		go c.watchSignals(ctx)
	}
}

// watchStopFile polls for the existence of the stop file.
func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.checkStopFile() {
				c.log.Info("emergency stop file detected", "path", c.stopFile)
				c.triggerStop(fmt.Sprintf("stop file detected: %s", c.stopFile))
				return
			}
		}
	}
}

// watchSignals listens for OS signals.
func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		signal.Stop(sigCh)
		return
	case sig := <-sigCh:
		c.log.Info("emergency stop signal received", "signal", sig.String())
		c.triggerStop(fmt.Sprintf("signal: %v", sig))
		signal.Stop(sigCh)
		return
	}
}

// checkStopFile checks if the stop file exists.
func (c *Controller) checkStopFile() bool {
	_, err := os.Stat(c.stopFile)
	return err == nil
}

// triggerStop triggers the emergency stop, running every registered
// callback with the StopEvent that caused it. Callbacks run in
// registration order and synchronously — a trial's own abort-teardown
// callback, registered first, always unwinds before later observers
// (e.g. metrics flushing) run.
func (c *Controller) triggerStop(reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stopped {
		return
	}

	c.stopped = true
	close(c.stopCh)

	event := StopEvent{Reason: reason, Triggered: time.Now()}
	c.log.Warn("emergency stop triggered", "reason", event.Reason, "callbacks", len(c.callbacks))

	for i, callback := range c.callbacks {
		c.log.Debug("running emergency callback", "index", i+1, "total", len(c.callbacks))
		callback(event)
	}
}

// Stop manually triggers an emergency stop.
func (c *Controller) Stop(reason string) {
	c.triggerStop(reason)
}

// IsStopped returns true if emergency stop has been triggered.
func (c *Controller) IsStopped() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// StopChannel returns a channel that closes when stop is triggered.
func (c *Controller) StopChannel() <-chan struct{} {
	return c.stopCh
}

// OnStop registers a callback to run, with the triggering StopEvent,
// when an emergency stop fires.
func (c *Controller) OnStop(callback func(StopEvent)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// CreateStopFile creates the emergency stop file.
func (c *Controller) CreateStopFile() error {
	f, err := os.Create(c.stopFile)
	if err != nil {
		return fmt.Errorf("failed to create stop file: %w", err)
	}
	defer f.Close()

	_, err = f.WriteString(fmt.Sprintf("emergency stop requested at %s\n", time.Now().Format(time.RFC3339)))
	if err != nil {
		return fmt.Errorf("failed to write to stop file: %w", err)
	}

	return nil
}

// RemoveStopFile removes the emergency stop file.
func (c *Controller) RemoveStopFile() error {
	err := os.Remove(c.stopFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stop file: %w", err)
	}
	return nil
}

// GetStopFilePath returns the path to the stop file.
func (c *Controller) GetStopFilePath() string {
	return c.stopFile
}
