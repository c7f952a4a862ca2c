// Package openclaw shells out to the openclaw CLI for agent status and cron
// jobs. The tool is optional; its absence is reported, not treated as failure.
package openclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/models"
)

// ErrNotInstalled is returned when no working executable was found.
var ErrNotInstalled = errors.New("openclaw: not installed")

type Client struct {
	resolver *Resolver
	runner   Runner
	timeout  time.Duration
	logger   *zap.Logger
}

func NewClient(resolver *Resolver, runner Runner, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		resolver: resolver,
		runner:   runner,
		timeout:  timeout,
		logger:   logger,
	}
}

func (c *Client) Probe(ctx context.Context) Probe {
	return c.resolver.Resolve(ctx)
}

func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	out, err := c.run(ctx, "status", "--json")
	if err != nil {
		return nil, err
	}

	var report StatusReport
	if err := decode(out, &report); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &report, nil
}

func (c *Client) CronJobs(ctx context.Context) ([]models.CronJob, error) {
	out, err := c.run(ctx, "cron", "list", "--json")
	if err != nil {
		return nil, err
	}

	var list cronList
	if err := decode(out, &list); err != nil {
		return nil, fmt.Errorf("decode cron list: %w", err)
	}

	jobs := make([]models.CronJob, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		jobs = append(jobs, j.normalize())
	}
	return jobs, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	probe := c.resolver.Resolve(ctx)
	if !probe.Installed {
		return nil, ErrNotInstalled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.runner.Run(ctx, probe.Path, args...)
	if err != nil {
		c.logger.Warn("openclaw command failed",
			zap.Strings("args", args),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	return extractJSON(out)
}

// extractJSON drops banner or warning lines printed ahead of the document.
func extractJSON(out []byte) ([]byte, error) {
	i := bytes.IndexByte(out, '{')
	if i < 0 {
		return nil, fmt.Errorf("no JSON object in output: %q", truncate(out, 120))
	}
	return out[i:], nil
}

// decode reads the first JSON value and ignores anything printed after it.
func decode(data []byte, v any) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
