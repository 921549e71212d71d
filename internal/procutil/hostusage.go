package procutil

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostUsage is a point-in-time snapshot of host-level CPU, memory, and disk
// utilization — the same three figures the teacher's sibling tool surfaces
// on its /stats endpoint.
type HostUsage struct {
	CPUPercent    float64
	MemoryTotal   uint64
	MemoryUsed    uint64
	MemoryPercent float64
	DiskTotal     uint64
	DiskUsed      uint64
	DiskPercent   float64
}

// HostStats samples CPU usage averaged across all cores (non-blocking: it
// reports the delta since the previous call, per gopsutil's internal
// last-sample bookkeeping — the first call in a process's lifetime always
// reads 0), current memory, and the sum of all mounted disks' usage. A
// per-disk Usage failure (permission, unmounted, virtual fs) is skipped
// rather than failing the whole snapshot.
func HostStats() (HostUsage, error) {
	var u HostUsage

	percents, err := cpu.PercentWithContext(context.Background(), 0, false)
	if err == nil && len(percents) > 0 {
		u.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(context.Background())
	if err != nil {
		return u, err
	}
	u.MemoryTotal = vm.Total
	u.MemoryUsed = vm.Used
	u.MemoryPercent = vm.UsedPercent

	partitions, err := disk.PartitionsWithContext(context.Background(), false)
	if err == nil {
		seen := make(map[string]bool, len(partitions))
		for _, p := range partitions {
			if seen[p.Mountpoint] {
				continue
			}
			seen[p.Mountpoint] = true
			usage, err := disk.UsageWithContext(context.Background(), p.Mountpoint)
			if err != nil {
				continue
			}
			u.DiskTotal += usage.Total
			u.DiskUsed += usage.Used
		}
	}
	if u.DiskTotal > 0 {
		u.DiskPercent = float64(u.DiskUsed) / float64(u.DiskTotal) * 100
	}

	return u, nil
}
