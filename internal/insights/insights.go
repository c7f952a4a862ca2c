// Package insights compares current process samples against their 24 hour
// averages and flags unusual CPU or memory use.
package insights

import (
	"encoding/json"
	"sort"

	"github.com/metorial/minidash/internal/models"
)

const (
	topCurrent  = 10
	topReported = 8
	minSamples  = 5
	minAvgCPU   = 1.0
	cpuFactor   = 2.0
	minAvgRAMMB = 50.0
	ramFactor   = 1.5
)

type Anomaly string

const (
	None    Anomaly = ""
	CPUHigh Anomaly = "cpu_high"
	RAMHigh Anomaly = "ram_high"
)

// MarshalJSON writes None as null.
func (a Anomaly) MarshalJSON() ([]byte, error) {
	if a == None {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// Classify flags current against its average. The average only counts with
// more than five samples behind it, and CPU is checked before memory.
func Classify(current models.ProcessSample, avg models.ProcessAverage) Anomaly {
	if avg.Samples <= minSamples {
		return None
	}
	if avg.CPU > minAvgCPU && current.CPU > cpuFactor*avg.CPU {
		return CPUHigh
	}
	if avg.RAMMB > minAvgRAMMB && current.RAMMB > ramFactor*avg.RAMMB {
		return RAMHigh
	}
	return None
}

type Insight struct {
	Name       string   `json:"name"`
	CPU        float64  `json:"cpu"`
	RAMMB      float64  `json:"ramMb"`
	AvgCPU     *float64 `json:"avgCpu"`
	AvgRAMMB   *float64 `json:"avgRamMb"`
	Samples    int      `json:"samples"`
	Anomaly    Anomaly  `json:"anomaly"`
	Historical bool     `json:"historical,omitempty"`
}

type Report struct {
	Processes  []Insight `json:"processes"`
	Anomalies  []Insight `json:"anomalies"`
	HasHistory bool      `json:"hasHistory"`
}

// Build joins the busiest current processes with their averages. Without any
// current samples it lists the busiest processes by historical average.
func Build(current []models.ProcessSample, averages map[string]models.ProcessAverage) Report {
	report := Report{
		Processes:  []Insight{},
		Anomalies:  []Insight{},
		HasHistory: len(averages) > 0,
	}

	if len(current) == 0 {
		report.Processes = fromHistory(averages)
		return report
	}

	for _, p := range topByCPU(current, topCurrent) {
		insight := Insight{Name: p.Name, CPU: p.CPU, RAMMB: p.RAMMB}
		if avg, ok := averages[p.Name]; ok {
			insight.AvgCPU = ptr(avg.CPU)
			insight.AvgRAMMB = ptr(avg.RAMMB)
			insight.Samples = avg.Samples
			insight.Anomaly = Classify(p, avg)
		}

		if len(report.Processes) < topReported {
			report.Processes = append(report.Processes, insight)
		}
		if insight.Anomaly != None {
			report.Anomalies = append(report.Anomalies, insight)
		}
	}
	return report
}

// topByCPU keeps the first (busiest) sample per name.
func topByCPU(samples []models.ProcessSample, n int) []models.ProcessSample {
	sorted := make([]models.ProcessSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CPU > sorted[j].CPU
	})

	seen := make(map[string]bool)
	result := make([]models.ProcessSample, 0, n)
	for _, s := range sorted {
		if len(result) >= n {
			break
		}
		if s.Name == "" || seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		result = append(result, s)
	}
	return result
}

func fromHistory(averages map[string]models.ProcessAverage) []Insight {
	list := make([]models.ProcessAverage, 0, len(averages))
	for _, avg := range averages {
		list = append(list, avg)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CPU != list[j].CPU {
			return list[i].CPU > list[j].CPU
		}
		return list[i].Name < list[j].Name
	})

	result := make([]Insight, 0, topReported)
	for _, avg := range list {
		if len(result) >= topReported {
			break
		}
		result = append(result, Insight{
			Name:       avg.Name,
			AvgCPU:     ptr(avg.CPU),
			AvgRAMMB:   ptr(avg.RAMMB),
			Samples:    avg.Samples,
			Historical: true,
		})
	}
	return result
}

func ptr(v float64) *float64 {
	return &v
}
