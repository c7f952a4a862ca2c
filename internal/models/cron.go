package models

type CronJob struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Schedule   string `json:"schedule"`
	NextRun    *int64 `json:"nextRun"`
	LastRun    *int64 `json:"lastRun"`
	LastStatus string `json:"lastStatus,omitempty"`
}
