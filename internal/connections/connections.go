// Package connections lists established outbound network connections per
// process, using lsof when available and the OS socket table otherwise.
package connections

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/models"
)

// remotePattern matches the destination half of an lsof NAME column such as
// "10.0.0.2:5123->142.250.1.1:443" or "[fe80::1]:5123->[2a00::1]:443".
var remotePattern = regexp.MustCompile(`->(\[[0-9A-Fa-f:.%]+\]|[^\s:\[\]]+):(\d+)`)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Lister struct {
	command string
	limit   int
	timeout time.Duration
	logger  *zap.Logger

	run    runFunc
	system func(ctx context.Context) ([]models.Connection, error)
}

func NewLister(command string, limit int, timeout time.Duration, logger *zap.Logger) *Lister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{
		command: command,
		limit:   limit,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "connections")),
		run:     runCommand,
		system:  systemConnections,
	}
}

// List returns at most limit connections, de-duplicated by process and host.
func (l *Lister) List(ctx context.Context) ([]models.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.run(ctx, l.command, "-i", "-n", "-P")
	if err == nil {
		return Filter(ParseLsof(out), l.limit), nil
	}
	if !errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("run %s: %w", l.command, err)
	}

	l.logger.Debug("Command not installed, reading socket table", zap.String("command", l.command))
	conns, err := l.system(ctx)
	if err != nil {
		return nil, fmt.Errorf("read socket table: %w", err)
	}
	return Filter(conns, l.limit), nil
}

// ParseLsof extracts ESTABLISHED connections from `lsof -i -n -P` output.
func ParseLsof(out []byte) []models.Connection {
	var conns []models.Connection

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "ESTABLISHED") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		m := remotePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		conns = append(conns, models.Connection{
			Process: strings.ReplaceAll(fields[0], `\x20`, " "),
			Host:    strings.Trim(m[1], "[]"),
			Port:    port,
		})
	}
	return conns
}

// Filter drops loopback destinations, keeps the first entry per
// (process, host) pair and caps the result at limit.
func Filter(conns []models.Connection, limit int) []models.Connection {
	seen := make(map[string]bool)
	result := make([]models.Connection, 0, len(conns))

	for _, c := range conns {
		if limit > 0 && len(result) >= limit {
			break
		}
		if c.Host == "" || IsLoopback(c.Host) {
			continue
		}
		key := c.Process + "\x00" + c.Host
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, c)
	}
	return result
}

func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// lsof exits 1 when some sockets could not be read but still prints the rest
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
