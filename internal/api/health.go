package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metorial/minidash/internal/store"
)

type HealthReport struct {
	Status    string       `json:"status"`
	Timestamp int64        `json:"timestamp"`
	Checks    HealthChecks `json:"checks"`
}

type HealthChecks struct {
	API      APICheck      `json:"api"`
	Database store.Health  `json:"database"`
	Glances  GlancesCheck  `json:"glances"`
	OpenClaw OpenClawCheck `json:"openclaw"`
}

type APICheck struct {
	OK        bool   `json:"ok"`
	Uptime    int64  `json:"uptime"`
	Hostname  string `json:"hostname,omitempty"`
	Platform  string `json:"platform,omitempty"`
	CacheKeys int    `json:"cacheKeys"`
}

type GlancesCheck struct {
	OK        bool   `json:"ok"`
	URL       string `json:"url"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// OpenClawCheck is OK when the tool is absent; it is optional.
type OpenClawCheck struct {
	OK        bool   `json:"ok"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.Health(r.Context()))
}

// Health probes every source concurrently, each under its own timeout.
// It never fails; problems show up as a "degraded" status.
func (a *API) Health(ctx context.Context) HealthReport {
	var checks HealthChecks
	var g errgroup.Group

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, a.healthTimeout)
		defer cancel()
		checks.Database = a.store.Check(ctx)
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, a.healthTimeout)
		defer cancel()
		checks.Glances = a.checkGlances(ctx)
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, a.healthTimeout)
		defer cancel()
		checks.OpenClaw = a.checkOpenClaw(ctx)
		return nil
	})
	g.Wait()

	checks.API = a.checkAPI(ctx)

	status := "ok"
	if !checks.Database.OK || !checks.Glances.OK || !checks.OpenClaw.OK {
		status = "degraded"
	}

	return HealthReport{
		Status:    status,
		Timestamp: a.now().Unix(),
		Checks:    checks,
	}
}

func (a *API) checkAPI(ctx context.Context) APICheck {
	check := APICheck{
		OK:        true,
		Uptime:    int64(a.now().Sub(a.started) / time.Second),
		CacheKeys: len(a.cache.Keys()),
	}

	a.hostOnce.Do(func() {
		info, err := host.InfoWithContext(ctx)
		if err != nil {
			a.logger.Debug("Host info unavailable", zap.Error(err))
			return
		}
		a.host = info
	})
	if a.host != nil {
		check.Hostname = a.host.Hostname
		check.Platform = a.host.Platform
	}
	return check
}

func (a *API) checkGlances(ctx context.Context) GlancesCheck {
	check := GlancesCheck{URL: a.glances.BaseURL()}

	start := time.Now()
	err := a.glances.Ping(ctx)
	check.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check
	}
	check.OK = true
	return check
}

func (a *API) checkOpenClaw(ctx context.Context) OpenClawCheck {
	probe := a.openclaw.Probe(ctx)
	check := OpenClawCheck{
		Installed: probe.Installed,
		Path:      probe.Path,
		Version:   probe.Version,
	}
	if !probe.Installed {
		check.OK = true
		return check
	}

	if _, err := a.openclaw.Status(ctx); err != nil {
		check.Error = err.Error()
		return check
	}
	check.OK = true
	return check
}
