package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/cache"
	"github.com/metorial/minidash/internal/insights"
	"github.com/metorial/minidash/internal/models"
	"github.com/metorial/minidash/internal/openclaw"
	"github.com/metorial/minidash/internal/store"
	"github.com/metorial/minidash/internal/timeseries"
	"github.com/metorial/minidash/internal/usage"
)

const (
	day          = 24 * time.Hour
	recentWindow = 10
)

// Status is the agent overview. Source tells where the numbers came from:
// "live", "cached" (last good live answer), "history" (collector row) or
// "none".
type Status struct {
	Installed   bool   `json:"installed"`
	Status      string `json:"status"`
	Sessions    int    `json:"sessions"`
	Tokens      int64  `json:"tokens"`
	Tokens24h   int64  `json:"tokens24h"`
	Model       string `json:"model,omitempty"`
	ContextUsed int    `json:"contextUsed"`
	Version     string `json:"version,omitempty"`
	Source      string `json:"source"`
	Cached      bool   `json:"cached,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type Tokens24h struct {
	Tokens24h int64                `json:"tokens24h"`
	Samples   int                  `json:"samples"`
	History   []models.UsageSample `json:"history,omitempty"`
}

type History struct {
	Range         timeseries.Range `json:"range"`
	Count         int              `json:"count"`
	BucketSeconds int64            `json:"bucketSeconds,omitempty"`
	Metrics       []store.Row      `json:"metrics"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.Status(r.Context()))
}

// Status answers from the live CLI when possible and otherwise walks the
// fallback chain: last good answer, newest collector row, bare probe.
func (a *API) Status(ctx context.Context) Status {
	live, err := cache.Fetch(ctx, a.cache, "openclaw:status", a.ttl.Status.Duration, a.liveStatus)
	if err == nil {
		return live
	}

	a.mu.Lock()
	last := a.lastStatus
	a.mu.Unlock()
	if last != nil {
		s := *last
		s.Status = "down"
		s.Source = "cached"
		s.Cached = true
		return s
	}

	probe := a.openclaw.Probe(ctx)
	latest, err := a.store.LatestUsage(ctx)
	if err == nil {
		return Status{
			Installed: probe.Installed,
			Status:    "down",
			Sessions:  latest.Sessions,
			Tokens:    latest.Tokens,
			Tokens24h: a.Tokens24h(ctx).Tokens24h,
			Version:   probe.Version,
			Source:    "history",
			Timestamp: latest.Timestamp,
		}
	}
	if !errors.Is(err, store.ErrNoRows) {
		a.logger.Debug("No usage history for status fallback", zap.Error(err))
	}

	return Status{
		Installed: probe.Installed,
		Status:    "unknown",
		Version:   probe.Version,
		Source:    "none",
		Timestamp: a.now().Unix(),
	}
}

func (a *API) liveStatus(ctx context.Context) (Status, error) {
	report, err := a.openclaw.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	probe := a.openclaw.Probe(ctx)

	s := Status{
		Installed:   true,
		Status:      "running",
		Sessions:    report.SessionCount(),
		Tokens:      report.RecentTokens(recentWindow),
		Tokens24h:   a.Tokens24h(ctx).Tokens24h,
		Model:       report.Model(),
		ContextUsed: report.ContextUsed(),
		Version:     probe.Version,
		Source:      "live",
		Timestamp:   a.now().Unix(),
	}

	a.mu.Lock()
	a.lastStatus = &s
	a.mu.Unlock()
	return s, nil
}

func (a *API) handleTokens24h(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.Tokens24h(r.Context()))
}

func (a *API) Tokens24h(ctx context.Context) Tokens24h {
	result, err := cache.Fetch(ctx, a.cache, "openclaw:tokens24h", a.ttl.Tokens24h.Duration,
		func(ctx context.Context) (Tokens24h, error) {
			samples, err := a.store.UsageSince(ctx, a.now().Add(-day))
			if err != nil {
				return Tokens24h{}, err
			}
			return Tokens24h{
				Tokens24h: usage.Delta24h(samples),
				Samples:   len(samples),
				History:   samples,
			}, nil
		}, cache.AllowStaleOnError())
	if err != nil {
		a.logger.Warn("Failed to load token history", zap.Error(err))
		return Tokens24h{}
	}
	return result
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	rng := timeseries.ParseRange(r.URL.Query().Get("range"))

	result, err := cache.Fetch(r.Context(), a.cache, "history:"+string(rng), a.ttl.History.Duration,
		func(ctx context.Context) (History, error) {
			rows, err := a.store.MetricsSince(ctx, rng.Since(a.now()))
			if err != nil {
				return History{}, err
			}
			rows = timeseries.Downsample(rows, rng.Bucket())
			if rows == nil {
				rows = []store.Row{}
			}
			return History{
				Range:         rng,
				Count:         len(rows),
				BucketSeconds: int64(rng.Bucket() / time.Second),
				Metrics:       rows,
			}, nil
		}, cache.AllowStaleOnError())
	if err != nil {
		a.logger.Warn("Failed to load history", zap.String("range", string(rng)), zap.Error(err))
		result = History{Range: rng, Metrics: []store.Row{}}
	}

	respondJSON(w, http.StatusOK, result)
}

func (a *API) handleCron(w http.ResponseWriter, r *http.Request) {
	jobs, err := cache.Fetch(r.Context(), a.cache, "openclaw:cron", a.ttl.Cron.Duration,
		a.openclaw.CronJobs, cache.AllowStaleOnError())
	if err != nil {
		a.logDegraded("cron jobs", err)
		jobs = nil
	}
	if jobs == nil {
		jobs = []models.CronJob{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": jobs,
	})
}

func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	report, err := cache.Fetch(r.Context(), a.cache, "openclaw:tokens", a.ttl.Tokens.Duration,
		func(ctx context.Context) (usage.Report, error) {
			status, err := a.openclaw.Status(ctx)
			if err != nil {
				return usage.Report{}, err
			}
			return usage.Breakdown(status.RecentTokens(recentWindow), status.Model()), nil
		}, cache.AllowStaleOnError())

	switch {
	case errors.Is(err, openclaw.ErrNotInstalled):
		report = usage.Unavailable("OpenClaw not installed")
	case err != nil:
		a.logDegraded("token breakdown", err)
		report = usage.Unavailable("OpenClaw status unavailable")
	}

	respondJSON(w, http.StatusOK, report)
}

func (a *API) handleConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := cache.Fetch(r.Context(), a.cache, "connections", a.ttl.Connections.Duration,
		a.conns.List, cache.AllowStaleOnError())
	if err != nil {
		a.logger.Warn("Failed to list connections", zap.Error(err))
		conns = nil
	}
	if conns == nil {
		conns = []models.Connection{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"connections": conns,
	})
}

func (a *API) handleProcesses(w http.ResponseWriter, r *http.Request) {
	report, err := cache.Fetch(r.Context(), a.cache, "processes", a.ttl.Processes.Duration,
		func(ctx context.Context) (insights.Report, error) {
			return a.processInsights(ctx), nil
		}, cache.AllowStaleOnError())
	if err != nil {
		report = insights.Build(nil, nil)
	}

	respondJSON(w, http.StatusOK, report)
}

func (a *API) processInsights(ctx context.Context) insights.Report {
	var current []models.ProcessSample
	procs, err := a.glances.Processes(ctx)
	if err != nil {
		a.logger.Warn("Glances process list unavailable", zap.Error(err))
	}
	for _, p := range procs {
		current = append(current, p.Sample())
	}

	averages, err := a.store.ProcessAverages(ctx, a.now().Add(-day))
	if err != nil {
		a.logger.Warn("Process history unavailable", zap.Error(err))
		averages = nil
	}

	return insights.Build(current, averages)
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, quotes[a.intn(len(quotes))])
}

// logDegraded keeps an absent CLI out of the warning log.
func (a *API) logDegraded(what string, err error) {
	if errors.Is(err, openclaw.ErrNotInstalled) {
		a.logger.Debug("openclaw not installed", zap.String("resource", what))
		return
	}
	a.logger.Warn("openclaw unavailable", zap.String("resource", what), zap.Error(err))
}
