// Package metrics collects host health figures for status replies.
package metrics

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

// LoadAverage holds the 1, 5 and 15 minute load figures.
type LoadAverage struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// DiskStatus is the usage of one monitored filesystem.
type DiskStatus struct {
	Name        string
	Path        string
	UsedPercent float64
	FreeBytes   uint64
	Threshold   float64
	Err         error
}

// Health is a point-in-time view of the host. Collection failures are
// recorded per item so one broken probe does not hide the rest.
type Health struct {
	Load    *LoadAverage
	LoadErr error
	Disks   []DiskStatus
}

// Snapshot probes the host load and the configured filesystem
// monitors. With no monitors configured the root filesystem is
// reported.
func Snapshot(monitors []config.DeviceMonitor) *Health {
	if len(monitors) == 0 {
		monitors = []config.DeviceMonitor{{
			Name:           "root",
			Path:           "/",
			AlertThreshold: config.DefaultAlertThreshold,
		}}
	}

	h := &Health{}
	if avg, err := load.Avg(); err != nil {
		h.LoadErr = err
	} else {
		h.Load = &LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}

	for _, m := range monitors {
		status := DiskStatus{Name: m.Name, Path: m.Path, Threshold: m.AlertThreshold}
		if usage, err := disk.Usage(m.Path); err != nil {
			status.Err = err
		} else {
			status.UsedPercent = usage.UsedPercent
			status.FreeBytes = usage.Free
		}
		h.Disks = append(h.Disks, status)
	}
	return h
}

// Format renders the snapshot as a multi-line status message.
func (h *Health) Format() string {
	var b strings.Builder

	if h.Load != nil {
		fmt.Fprintf(&b, "Load average: %.2f %.2f %.2f\n", h.Load.Load1, h.Load.Load5, h.Load.Load15)
	} else {
		fmt.Fprintf(&b, "Load average: unavailable (%v)\n", h.LoadErr)
	}

	for _, d := range h.Disks {
		if d.Err != nil {
			fmt.Fprintf(&b, "%s (%s): unavailable (%v)\n", d.Name, d.Path, d.Err)
			continue
		}
		fmt.Fprintf(&b, "%s (%s): %.1f%% used, %s free", d.Name, d.Path, d.UsedPercent, formatBytes(d.FreeBytes))
		if d.Threshold > 0 && d.UsedPercent >= d.Threshold {
			fmt.Fprintf(&b, " ⚠️ above %.0f%% threshold", d.Threshold)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
