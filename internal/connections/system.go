package connections

import (
	"context"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/metorial/minidash/internal/models"
)

// systemConnections reads established inet sockets through gopsutil.
func systemConnections(ctx context.Context) ([]models.Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}

	names := make(map[int32]string)
	conns := make([]models.Connection, 0, len(stats))
	for _, s := range stats {
		if s.Status != "ESTABLISHED" || s.Raddr.IP == "" {
			continue
		}
		conns = append(conns, models.Connection{
			Process: processName(ctx, s.Pid, names),
			Host:    s.Raddr.IP,
			Port:    int(s.Raddr.Port),
		})
	}
	return conns, nil
}

func processName(ctx context.Context, pid int32, cache map[int32]string) string {
	if name, ok := cache[pid]; ok {
		return name
	}

	name := "unknown"
	if pid > 0 {
		if p, err := process.NewProcessWithContext(ctx, pid); err == nil {
			if n, err := p.NameWithContext(ctx); err == nil && n != "" {
				name = n
			}
		}
	}
	cache[pid] = name
	return name
}
