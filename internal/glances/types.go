package glances

import (
	"encoding/json"

	"github.com/metorial/minidash/internal/models"
)

// Process is one processlist entry. Only the fields the dashboard uses are
// decoded; cpu_percent may be null upstream.
type Process struct {
	PID        int        `json:"pid"`
	Name       string     `json:"name"`
	CPUPercent *float64   `json:"cpu_percent"`
	MemoryInfo MemoryInfo `json:"memory_info"`
}

func (p Process) CPU() float64 {
	if p.CPUPercent == nil {
		return 0
	}
	return *p.CPUPercent
}

func (p Process) RAMMB() float64 {
	return float64(p.MemoryInfo.RSS) / (1024 * 1024)
}

func (p Process) Sample() models.ProcessSample {
	return models.ProcessSample{Name: p.Name, CPU: p.CPU(), RAMMB: p.RAMMB()}
}

// MemoryInfo accepts either {"rss": n, ...} or [rss, vms, ...], depending on
// the Glances version.
type MemoryInfo struct {
	RSS uint64
}

func (m *MemoryInfo) UnmarshalJSON(data []byte) error {
	var obj struct {
		RSS float64 `json:"rss"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		m.RSS = uint64(obj.RSS)
		return nil
	}

	var list []float64
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) > 0 {
			m.RSS = uint64(list[0])
		}
		return nil
	}

	// null or an unexpected shape: treat as unknown
	m.RSS = 0
	return nil
}
