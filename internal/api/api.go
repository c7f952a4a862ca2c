// Package api serves the dashboard's JSON endpoints. Each handler composes the
// history store, the Glances client and the openclaw CLI behind the shared
// cache and degrades to an empty but well-formed payload when a source fails.
package api

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/cache"
	"github.com/metorial/minidash/internal/config"
	"github.com/metorial/minidash/internal/glances"
	"github.com/metorial/minidash/internal/models"
	"github.com/metorial/minidash/internal/openclaw"
	"github.com/metorial/minidash/internal/store"
)

type HistoryStore interface {
	MetricsSince(ctx context.Context, since time.Time) ([]store.Row, error)
	UsageSince(ctx context.Context, since time.Time) ([]models.UsageSample, error)
	LatestUsage(ctx context.Context) (*models.UsageSample, error)
	ProcessAverages(ctx context.Context, since time.Time) (map[string]models.ProcessAverage, error)
	Check(ctx context.Context) store.Health
}

type MetricsAgent interface {
	BaseURL() string
	Fetch(ctx context.Context, endpoint string) (*glances.Response, error)
	Processes(ctx context.Context) ([]glances.Process, error)
	Ping(ctx context.Context) error
}

type AgentCLI interface {
	Probe(ctx context.Context) openclaw.Probe
	Status(ctx context.Context) (*openclaw.StatusReport, error)
	CronJobs(ctx context.Context) ([]models.CronJob, error)
}

type ConnectionLister interface {
	List(ctx context.Context) ([]models.Connection, error)
}

// Deps are the sources the handlers read from.
type Deps struct {
	Store       HistoryStore
	Glances     MetricsAgent
	OpenClaw    AgentCLI
	Connections ConnectionLister
	Cache       *cache.Cache
	TTL         config.CacheConfig
	Logger      *zap.Logger
}

type API struct {
	store    HistoryStore
	glances  MetricsAgent
	openclaw AgentCLI
	conns    ConnectionLister
	cache    *cache.Cache
	ttl      config.CacheConfig
	logger   *zap.Logger

	healthTimeout time.Duration
	now           func() time.Time
	intn          func(n int) int
	started       time.Time

	mu         sync.Mutex
	lastStatus *Status

	hostOnce sync.Once
	host     *host.InfoStat

	routes map[string]http.HandlerFunc
}

type Option func(*API)

// WithClock replaces time.Now for window calculations and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// WithRandom replaces the source used to pick a quote.
func WithRandom(intn func(n int) int) Option {
	return func(a *API) { a.intn = intn }
}

func WithHealthTimeout(d time.Duration) Option {
	return func(a *API) { a.healthTimeout = d }
}

func New(deps Deps, opts ...Option) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(logger)
	}

	a := &API{
		store:         deps.Store,
		glances:       deps.Glances,
		openclaw:      deps.OpenClaw,
		conns:         deps.Connections,
		cache:         c,
		ttl:           deps.TTL,
		logger:        logger.With(zap.String("component", "api")),
		healthTimeout: 5 * time.Second,
		now:           time.Now,
		intn:          rand.Intn,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.now()

	a.routes = map[string]http.HandlerFunc{
		"/openclaw":         a.handleStatus,
		"/openclaw/history": a.handleTokens24h,
		"/history":          a.handleHistory,
		"/cron":             a.handleCron,
		"/tokens":           a.handleTokens,
		"/connections":      a.handleConnections,
		"/processes":        a.handleProcesses,
		"/quote":            a.handleQuote,
		"/health":           a.handleHealth,
	}
	return a
}

// RegisterRoutes mounts the front door on mux at the root.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/", a.Handler())
}
