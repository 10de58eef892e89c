// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage checks output destinations before large writes.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskUsage disk usage of the filesystem holding a path.
type DiskUsage struct {
	Used    uint64
	Total   uint64
	Free    uint64
	Percent float64
}

type usageFunc func(string) (*disk.UsageStat, error)

// Checker verifies that an output directory exists and has headroom.
type Checker struct {
	usage usageFunc
}

// NewChecker returns a Checker.
func NewChecker() *Checker {
	return &Checker{usage: disk.Usage}
}

// DiskUsage returns usage of the filesystem holding path.
func (c *Checker) DiskUsage(path string) (DiskUsage, error) {
	stat, err := c.usage(path)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk usage of %v: %w", path, err)
	}
	return DiskUsage{
		Used:    stat.Used,
		Total:   stat.Total,
		Free:    stat.Free,
		Percent: stat.UsedPercent,
	}, nil
}

// EnsureOutputDir creates the directory holding path if missing and fails
// validation when the filesystem lacks the required free bytes. Lossless
// output is large, running out of space mid-mux would leave a half-written
// artifact.
func (c *Checker) EnsureOutputDir(path string, requiredBytes uint64) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mpxerr.Wrap(mpxerr.KindValidation, err, "create output directory %v", dir)
	}

	usage, err := c.DiskUsage(dir)
	if err != nil {
		return mpxerr.Wrap(mpxerr.KindValidation, err, "check output directory %v", dir)
	}
	if usage.Free < requiredBytes {
		return mpxerr.Validation("insufficient disk space in %v: %v free, %v required",
			dir, usage.Free, requiredBytes)
	}
	return nil
}
