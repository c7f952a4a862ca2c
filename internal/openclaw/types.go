package openclaw

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/metorial/minidash/internal/models"
)

// StatusReport is the subset of `openclaw status --json` the dashboard reads.
// Every field is optional upstream.
type StatusReport struct {
	Sessions SessionSummary `json:"sessions"`
}

type SessionSummary struct {
	Count    *int          `json:"count"`
	Recent   []SessionInfo `json:"recent"`
	Defaults struct {
		Model         string `json:"model"`
		ContextTokens int64  `json:"contextTokens"`
	} `json:"defaults"`
}

type SessionInfo struct {
	Key           string   `json:"key"`
	Kind          string   `json:"kind"`
	Model         string   `json:"model"`
	TotalTokens   int64    `json:"totalTokens"`
	ContextTokens int64    `json:"contextTokens"`
	PercentUsed   *float64 `json:"percentUsed"`
	UpdatedAt     int64    `json:"updatedAt"`
}

// SessionCount prefers the reported count over the length of the recent list.
func (r *StatusReport) SessionCount() int {
	if r.Sessions.Count != nil {
		return *r.Sessions.Count
	}
	return len(r.Sessions.Recent)
}

// MainSession returns the session keyed "...:main", else the first recent one.
func (r *StatusReport) MainSession() *SessionInfo {
	for i := range r.Sessions.Recent {
		if strings.HasSuffix(r.Sessions.Recent[i].Key, ":main") {
			return &r.Sessions.Recent[i]
		}
	}
	if len(r.Sessions.Recent) > 0 {
		return &r.Sessions.Recent[0]
	}
	return nil
}

// RecentTokens sums totalTokens over the first n recent sessions.
func (r *StatusReport) RecentTokens(n int) int64 {
	var total int64
	for i, s := range r.Sessions.Recent {
		if i >= n {
			break
		}
		total += s.TotalTokens
	}
	return total
}

// Model is the main session's model, falling back to the configured default.
func (r *StatusReport) Model() string {
	if main := r.MainSession(); main != nil && main.Model != "" {
		return main.Model
	}
	return r.Sessions.Defaults.Model
}

// ContextUsed is the main session's context window usage in whole percent.
func (r *StatusReport) ContextUsed() int {
	main := r.MainSession()
	if main == nil {
		return 0
	}
	if main.PercentUsed != nil {
		return int(math.Round(*main.PercentUsed))
	}

	limit := main.ContextTokens
	if limit == 0 {
		limit = r.Sessions.Defaults.ContextTokens
	}
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(main.TotalTokens) / float64(limit) * 100))
}

// cronJob mirrors one entry of `openclaw cron list --json`.
type cronJob struct {
	ID       string          `json:"id"`
	JobID    string          `json:"jobId"`
	Name     string          `json:"name"`
	Enabled  *bool           `json:"enabled"`
	Schedule json.RawMessage `json:"schedule"`
	State    struct {
		NextRunAtMs *int64 `json:"nextRunAtMs"`
		LastRunAtMs *int64 `json:"lastRunAtMs"`
		LastStatus  string `json:"lastStatus"`
	} `json:"state"`
}

type cronList struct {
	Jobs []cronJob `json:"jobs"`
}

func (j cronJob) normalize() models.CronJob {
	id := j.ID
	if id == "" {
		id = j.JobID
	}
	name := j.Name
	if name == "" {
		name = id
	}
	enabled := true
	if j.Enabled != nil {
		enabled = *j.Enabled
	}

	return models.CronJob{
		ID:         id,
		Name:       name,
		Enabled:    enabled,
		Schedule:   describeSchedule(j.Schedule),
		NextRun:    j.State.NextRunAtMs,
		LastRun:    j.State.LastRunAtMs,
		LastStatus: j.State.LastStatus,
	}
}

// describeSchedule flattens the schedule, which is either a plain string or
// an object of kind cron, every or at.
func describeSchedule(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Kind    string `json:"kind"`
		Expr    string `json:"expr"`
		EveryMs int64  `json:"everyMs"`
		At      string `json:"at"`
		TZ      string `json:"tz"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}

	switch {
	case obj.Expr != "":
		if obj.TZ != "" {
			return obj.Expr + " (" + obj.TZ + ")"
		}
		return obj.Expr
	case obj.EveryMs > 0:
		return "every " + formatEvery(obj.EveryMs)
	case obj.At != "":
		return "at " + obj.At
	}
	return obj.Kind
}

func formatEvery(ms int64) string {
	switch {
	case ms%3_600_000 == 0:
		return fmt.Sprintf("%dh", ms/3_600_000)
	case ms%60_000 == 0:
		return fmt.Sprintf("%dm", ms/60_000)
	case ms%1000 == 0:
		return fmt.Sprintf("%ds", ms/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
