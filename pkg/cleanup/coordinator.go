// Package cleanup implements the teardown coordinator of §4.8/§12: it
// drives emulation and controller teardown through the Verifier and
// keeps an audit trail of every step, grounded on the teacher's sidecar
// cleanup coordinator but retargeted from sidecar/comcast artifacts to
// emulation containers and controller-side state.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/emulation"
	"github.com/kbenson/ride-harness/pkg/verification"
)

// Coordinator orchestrates teardown of one trial's emulation and
// controller state, auditing every step.
type Coordinator struct {
	driver   *emulation.Driver
	ca       *controller.Client
	verifier *verification.Verifier
	auditLog []AuditEntry
}

// AuditEntry represents one cleanup action.
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Target    string
	Success   bool
	Error     error
	Details   string
}

// New creates a new cleanup coordinator.
func New(driver *emulation.Driver, ca *controller.Client, verifier *verification.Verifier) *Coordinator {
	return &Coordinator{
		driver:   driver,
		ca:       ca,
		verifier: verifier,
		auditLog: make([]AuditEntry, 0),
	}
}

// CleanupAll stops and removes the emulation, resets controller state,
// then verifies both are clean — the always-run teardown path of §4.8.
// hosts is captured by the caller before Stop so the qdisc check still
// has running containers to inspect.
func (c *Coordinator) CleanupAll(ctx context.Context, hosts []string) error {
	qdResult, qdErr := c.verifier.VerifyNoStrayQdisc(ctx, hosts)
	if qdErr != nil {
		c.logAudit("verify_qdisc", "emulation", "qdisc check failed", qdErr)
	} else if !qdResult.Clean {
		c.logAudit("verify_qdisc", "emulation", fmt.Sprintf("stray qdisc found: %v", qdResult.Details), nil)
	} else {
		c.logAudit("verify_qdisc", "emulation", "no stray qdisc found", nil)
	}

	c.logAudit("stop_emulation", "driver", "stopping emulated containers", c.driver.Stop(ctx))
	c.logAudit("remove_emulation", "driver", "removing emulated containers and bridge network", c.driver.Cleanup(ctx))
	c.logAudit("reset_controller", "controller", "purging flows, groups and host/switch state", c.ca.Reset(ctx))

	ccResult, err := c.verifier.VerifyControllerClean(ctx)
	if err != nil {
		c.logAudit("verify_controller_clean", "controller", "verification failed", err)
		return fmt.Errorf("cleanup: controller verification failed: %w", err)
	}
	if !ccResult.Clean {
		c.logAudit("verify_controller_clean", "controller", fmt.Sprintf("not clean: %v", ccResult.Details), nil)
		return fmt.Errorf("cleanup: controller state not clean after reset: %v", ccResult.Details)
	}
	c.logAudit("verify_controller_clean", "controller", "controller state clean", nil)

	if qdErr == nil && !qdResult.Clean {
		return fmt.Errorf("cleanup: stray qdisc found before teardown: %v", qdResult.Details)
	}

	return nil
}

func (c *Coordinator) logAudit(action, target, details string, err error) {
	c.auditLog = append(c.auditLog, AuditEntry{
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Success:   err == nil,
		Error:     err,
		Details:   details,
	})
}

// GetAuditLog returns the complete audit log.
func (c *Coordinator) GetAuditLog() []AuditEntry {
	return c.auditLog
}

// PrintAuditLog prints the audit log in a readable format.
func (c *Coordinator) PrintAuditLog() {
	if len(c.auditLog) == 0 {
		fmt.Println("no cleanup actions logged")
		return
	}

	fmt.Println("\nCleanup Audit Log:")
	fmt.Println("-----------------------------------------------------------")
	for i, entry := range c.auditLog {
		status := "ok"
		if !entry.Success {
			status = "fail"
		}
		fmt.Printf("%d. [%s] %s %s\n", i+1, entry.Timestamp.Format("15:04:05"), status, entry.Action)
		fmt.Printf("   Target: %s\n", entry.Target)
		fmt.Printf("   Details: %s\n", entry.Details)
		if entry.Error != nil {
			fmt.Printf("   Error: %v\n", entry.Error)
		}
		fmt.Println()
	}
	fmt.Println("-----------------------------------------------------------")
}

// GetSummary returns a summary of cleanup actions.
func (c *Coordinator) GetSummary() Summary {
	summary := Summary{TotalActions: len(c.auditLog)}
	for _, entry := range c.auditLog {
		if entry.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// Summary contains teardown summary statistics.
type Summary struct {
	TotalActions int
	Succeeded    int
	Failed       int
}

// String returns a string representation of the summary.
func (s Summary) String() string {
	return fmt.Sprintf("cleanup summary: %d total actions, %d succeeded, %d failed",
		s.TotalActions, s.Succeeded, s.Failed)
}
