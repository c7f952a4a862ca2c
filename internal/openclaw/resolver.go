package openclaw

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const binaryName = "openclaw"

// Probe is the outcome of looking for the openclaw executable.
type Probe struct {
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Candidates lists the locations to try, in order: the explicit override,
// common install directories, then the bare command name for a PATH lookup.
func Candidates(override, home string) []string {
	var candidates []string
	if override != "" {
		candidates = append(candidates, override)
	}

	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".npm-global", "bin", binaryName))

		nvm, _ := filepath.Glob(filepath.Join(home, ".nvm", "versions", "node", "*", "bin", binaryName))
		sort.Sort(sort.Reverse(sort.StringSlice(nvm)))
		candidates = append(candidates, nvm...)
	}

	candidates = append(candidates,
		"/opt/homebrew/bin/"+binaryName,
		"/usr/local/bin/"+binaryName,
	)
	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", binaryName))
	}

	return append(candidates, binaryName)
}

// Resolver finds the executable once and remembers the answer for the life
// of the process.
type Resolver struct {
	candidates []string
	runner     Runner
	timeout    time.Duration
	logger     *zap.Logger

	once  sync.Once
	probe Probe
}

func NewResolver(candidates []string, runner Runner, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		candidates: candidates,
		runner:     runner,
		timeout:    timeout,
		logger:     logger.With(zap.String("component", "openclaw")),
	}
}

// Resolve returns the first candidate that answers `--version`. A missing
// tool is reported as Probe{Installed: false}, not as an error.
func (r *Resolver) Resolve(ctx context.Context) Probe {
	r.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		for _, candidate := range r.candidates {
			version, err := r.version(ctx, candidate)
			if err != nil {
				r.logger.Debug("Candidate rejected",
					zap.String("path", candidate),
					zap.Error(err))
				continue
			}
			r.probe = Probe{Installed: true, Path: candidate, Version: version}
			r.logger.Info("Found openclaw",
				zap.String("path", candidate),
				zap.String("version", version))
			return
		}
		r.logger.Info("openclaw not found, AI agent stats disabled")
	})
	return r.probe
}

func (r *Resolver) version(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner.Run(ctx, path, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
