package httpapi

import (
	"net/http"

	"github.com/nilsaker/hearthkeep/internal/procutil"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

type statsOverviewResponse struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Stopped int `json:"stopped"`
	Unknown int `json:"unknown"`
}

// statsOverview is a thin aggregate over list_services — spec.md §6 maps
// /stats/* directly onto core calls, and list_services is the only core
// call with the counts this needs.
func (h *handler) statsOverview(w http.ResponseWriter, r *http.Request) {
	views, err := h.d.Manager.ListServices()
	if err != nil {
		writeCoreError(w, err)
		return
	}
	var resp statsOverviewResponse
	for _, v := range views {
		if !isDev(r) {
			u, _ := userFromCtx(r)
			if !u.HasService(v.Manifest.ID) {
				continue
			}
		}
		resp.Total++
		switch v.Status.State {
		case supervisor.Running:
			resp.Running++
		case supervisor.Stopped:
			resp.Stopped++
		default:
			resp.Unknown++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type systemStatsResponse struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskUsage   float64 `json:"disk_usage"`
}

// statsSystem reports host-level CPU/memory/disk utilization, dev-only:
// this is a host resource figure, not scoped to any one caller's services,
// so it carries no per-service access-control story to delegate to.
func (h *handler) statsSystem(w http.ResponseWriter, r *http.Request) {
	if !requireDev(w, r) {
		return
	}
	u, err := procutil.HostStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read host stats")
		return
	}
	writeJSON(w, http.StatusOK, systemStatsResponse{
		CPUUsage:    u.CPUPercent,
		MemoryTotal: u.MemoryTotal,
		MemoryUsed:  u.MemoryUsed,
		MemoryUsage: u.MemoryPercent,
		DiskTotal:   u.DiskTotal,
		DiskUsed:    u.DiskUsed,
		DiskUsage:   u.DiskPercent,
	})
}
