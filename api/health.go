package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/process"
)

// HealthReporter exposes liveness plus basic process stats (RSS, CPU, OS
// status) for the service itself.
type HealthReporter struct {
	proc *process.Process
}

func NewHealthReporter() (*HealthReporter, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HealthReporter{proc: proc}, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	response := gin.H{"ok": true}

	if s.health != nil {
		if rss, cpu, status, err := s.health.stats(); err == nil {
			response["pid"] = os.Getpid()
			response["ram_bytes"] = rss
			response["cpu_percent"] = cpu
			response["status"] = status
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthReporter) stats() (uint64, float64, string, error) {
	memInfo, err := h.proc.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := h.proc.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := h.proc.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
