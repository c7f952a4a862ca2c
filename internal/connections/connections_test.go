package connections

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/metorial/minidash/internal/models"
)

const lsofOutput = `COMMAND     PID USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
Google\x20 1201 dev   23u  IPv4 0x1a2b3c4d5e6f7a8b      0t0  TCP 192.168.1.20:52345->142.250.187.206:443 (ESTABLISHED)
Google\x20 1201 dev   24u  IPv4 0x1a2b3c4d5e6f7a8c      0t0  TCP 192.168.1.20:52346->142.250.187.206:443 (ESTABLISHED)
node       2202 dev   18u  IPv6 0x1a2b3c4d5e6f7a8d      0t0  TCP [2a01:4b00::5]:50000->[2606:4700::6810:84e5]:443 (ESTABLISHED)
node       2202 dev   19u  IPv4 0x1a2b3c4d5e6f7a8e      0t0  TCP 127.0.0.1:50001->127.0.0.1:61208 (ESTABLISHED)
node       2202 dev   20u  IPv6 0x1a2b3c4d5e6f7a8f      0t0  TCP [::1]:50002->[::1]:8888 (ESTABLISHED)
python3    3303 dev    5u  IPv4 0x1a2b3c4d5e6f7a90      0t0  TCP 10.0.0.5:40000->api.example.com:8443 (ESTABLISHED)
python3    3303 dev    6u  IPv4 0x1a2b3c4d5e6f7a91      0t0  TCP *:8000 (LISTEN)
python3    3303 dev    7u  IPv4 0x1a2b3c4d5e6f7a92      0t0  TCP 10.0.0.5:40001->10.0.0.9:5432 (CLOSE_WAIT)
curl       4404 dev    3u  IPv4 0x1a2b3c4d5e6f7a93      0t0  TCP 10.0.0.5:40002->localhost:80 (ESTABLISHED)
`

func TestParseLsof(t *testing.T) {
	conns := ParseLsof([]byte(lsofOutput))

	if len(conns) != 7 {
		t.Fatalf("Expected 7 established entries, got %d: %+v", len(conns), conns)
	}

	first := conns[0]
	if first.Process != "Google " || first.Host != "142.250.187.206" || first.Port != 443 {
		t.Errorf("Unexpected first connection: %+v", first)
	}
	if conns[2].Host != "2606:4700::6810:84e5" {
		t.Errorf("Expected bracketless IPv6 host, got %s", conns[2].Host)
	}
	if conns[5].Host != "api.example.com" || conns[5].Port != 8443 {
		t.Errorf("Expected hostname destination, got %+v", conns[5])
	}
}

func TestFilterDropsLoopbackAndDuplicates(t *testing.T) {
	conns := Filter(ParseLsof([]byte(lsofOutput)), 30)

	want := []models.Connection{
		{Process: "Google ", Host: "142.250.187.206", Port: 443},
		{Process: "node", Host: "2606:4700::6810:84e5", Port: 443},
		{Process: "python3", Host: "api.example.com", Port: 8443},
	}
	if len(conns) != len(want) {
		t.Fatalf("Expected %d connections, got %d: %+v", len(want), len(conns), conns)
	}
	for i := range want {
		if conns[i] != want[i] {
			t.Errorf("conns[%d] = %+v, want %+v", i, conns[i], want[i])
		}
	}
}

func TestFilterCapsResult(t *testing.T) {
	var conns []models.Connection
	for i := 0; i < 50; i++ {
		conns = append(conns, models.Connection{Process: "p", Host: fmt.Sprintf("10.0.%d.1", i), Port: 443})
	}

	if got := len(Filter(conns, 30)); got != 30 {
		t.Errorf("Expected 30 connections, got %d", got)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":     true,
		"127.8.9.10":    true,
		"::1":           true,
		"localhost":     true,
		"LOCALHOST":     true,
		"fe80::1%lo0":   false,
		"10.0.0.1":      false,
		"example.com":   false,
		"2606:4700::11": false,
	}
	for host, want := range tests {
		if got := IsLoopback(host); got != want {
			t.Errorf("IsLoopback(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestListUsesCommandOutput(t *testing.T) {
	lister := NewLister("lsof", 30, time.Second, nil)
	lister.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "lsof" || len(args) != 3 {
			t.Errorf("Unexpected command %s %v", name, args)
		}
		return []byte(lsofOutput), nil
	}
	lister.system = func(ctx context.Context) ([]models.Connection, error) {
		t.Error("Socket table must not be read when the command works")
		return nil, nil
	}

	conns, err := lister.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(conns) != 3 {
		t.Errorf("Expected 3 connections, got %d", len(conns))
	}
}

func TestListFallsBackWhenCommandMissing(t *testing.T) {
	lister := NewLister("lsof", 30, time.Second, nil)
	lister.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	lister.system = func(ctx context.Context) ([]models.Connection, error) {
		return []models.Connection{
			{Process: "ssh", Host: "203.0.113.7", Port: 22},
			{Process: "ssh", Host: "203.0.113.7", Port: 2222},
			{Process: "redis", Host: "127.0.0.1", Port: 6379},
		}, nil
	}

	conns, err := lister.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(conns) != 1 || conns[0].Process != "ssh" || conns[0].Port != 22 {
		t.Errorf("Unexpected fallback result: %+v", conns)
	}
}

func TestListCommandFailure(t *testing.T) {
	lister := NewLister("lsof", 30, time.Second, nil)
	lister.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("permission denied")
	}

	if _, err := lister.List(context.Background()); err == nil {
		t.Fatal("Expected error when the command fails")
	}
}
