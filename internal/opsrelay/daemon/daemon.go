// Package daemon provides process management for the relay daemon.
package daemon

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/dimasma0305/opsrelay/internal/log"
)

const (
	// DefaultPIDFile is where the daemon records its PID.
	DefaultPIDFile = "/tmp/opsrelay.pid"
	// DefaultLogFile is where the daemon writes its log.
	DefaultLogFile = "/tmp/opsrelay.log"
)

// ProcessState describes the result of probing the PID file.
type ProcessState string

const (
	StateRunning ProcessState = "running"
	StateStopped ProcessState = "stopped"
	StateDead    ProcessState = "dead"
	StateError   ProcessState = "error"
)

// ProcessStatus reports whether the daemon process is alive.
type ProcessStatus struct {
	Running bool         `json:"running"`
	State   ProcessState `json:"state"`
	PID     int          `json:"pid,omitempty"`
	PIDFile string       `json:"pid_file"`
	Message string       `json:"message,omitempty"`
}

// Probe checks whether the daemon recorded in pidFile is alive.
// A stale PID file left by a dead process is cleaned up.
func Probe(pidFile string) ProcessStatus {
	status := ProcessStatus{
		State:   StateStopped,
		PIDFile: pidFile,
	}

	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			status.Message = "PID file not found"
		} else {
			status.State = StateError
			status.Message = err.Error()
		}
		return status
	}
	status.PID = pid

	process, err := os.FindProcess(pid)
	if err != nil {
		status.State = StateError
		status.Message = fmt.Sprintf("failed to find process: %v", err)
		return status
	}

	// Signal 0 probes for existence without touching the process
	if err := process.Signal(syscall.Signal(0)); err != nil {
		status.State = StateDead
		if removeErr := os.Remove(pidFile); removeErr != nil && !os.IsNotExist(removeErr) {
			status.Message = fmt.Sprintf("process not running, failed to clean stale PID file: %v", removeErr)
		} else {
			status.Message = "process not running (cleaned up stale PID file)"
		}
		return status
	}

	status.Running = true
	status.State = StateRunning
	status.Message = "daemon is running"
	return status
}

// Stop terminates the daemon recorded in pidFile, escalating from
// SIGTERM to SIGKILL after a grace period.
func Stop(pidFile string) error {
	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon is not running (PID file not found)")
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", pid, err)
	}

	// Grace period for in-flight replies to drain
	time.Sleep(2 * time.Second)

	if err := process.Signal(syscall.Signal(0)); err == nil {
		log.Info("Process still running, sending SIGKILL...")
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process %d: %w", pid, err)
		}
	}

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	log.Info("Relay daemon stopped")
	return nil
}
