// Package discovery registers the dashboard API with a Consul agent and
// looks it up again for the operator CLI.
package discovery

import (
	"fmt"
	"net"
	"strconv"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

type Registrar struct {
	client   *consul.Client
	name     string
	address  string
	port     int
	grpcPort int
	logger   *zap.Logger
}

// NewRegistrar prepares registration of the HTTP API at host:port, and of the
// gRPC health listener when grpcPort is set. Wildcard and loopback hosts are
// replaced with the first non-loopback IPv4 address.
func NewRegistrar(consulAddr, name, host string, port, grpcPort int, logger *zap.Logger) (*Registrar, error) {
	client, err := newClient(consulAddr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	address := host
	if ip := net.ParseIP(host); host == "" || host == "localhost" || (ip != nil && (ip.IsLoopback() || ip.IsUnspecified())) {
		address = localIP()
	}

	return &Registrar{
		client:   client,
		name:     name,
		address:  address,
		port:     port,
		grpcPort: grpcPort,
		logger:   logger.With(zap.String("component", "discovery")),
	}, nil
}

func (r *Registrar) httpID() string {
	return r.name + "-http"
}

func (r *Registrar) grpcID() string {
	return r.name + "-grpc"
}

func (r *Registrar) Register() error {
	httpRegistration := &consul.AgentServiceRegistration{
		ID:      r.httpID(),
		Name:    r.name,
		Port:    r.port,
		Address: r.address,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s/api/health", net.JoinHostPort(r.address, strconv.Itoa(r.port))),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
		Tags: []string{"dashboard", "http", "api"},
	}
	if err := r.client.Agent().ServiceRegister(httpRegistration); err != nil {
		return fmt.Errorf("register %s: %w", httpRegistration.ID, err)
	}

	if r.grpcPort > 0 {
		grpcRegistration := &consul.AgentServiceRegistration{
			ID:      r.grpcID(),
			Name:    r.name + "-grpc",
			Port:    r.grpcPort,
			Address: r.address,
			Check: &consul.AgentServiceCheck{
				GRPC:                           net.JoinHostPort(r.address, strconv.Itoa(r.grpcPort)),
				Interval:                       "10s",
				Timeout:                        "5s",
				DeregisterCriticalServiceAfter: "1m",
			},
			Tags: []string{"dashboard", "grpc", "health"},
		}
		if err := r.client.Agent().ServiceRegister(grpcRegistration); err != nil {
			return fmt.Errorf("register %s: %w", grpcRegistration.ID, err)
		}
	}

	r.logger.Info("Registered with Consul",
		zap.String("service", r.name),
		zap.String("address", r.address),
		zap.Int("port", r.port))
	return nil
}

// Deregister removes both registrations. Errors are logged, not returned.
func (r *Registrar) Deregister() {
	if err := r.client.Agent().ServiceDeregister(r.httpID()); err != nil {
		r.logger.Warn("Failed to deregister HTTP service", zap.Error(err))
	}
	if r.grpcPort > 0 {
		if err := r.client.Agent().ServiceDeregister(r.grpcID()); err != nil {
			r.logger.Warn("Failed to deregister gRPC service", zap.Error(err))
		}
	}
}

// Lookup returns the base URL of the first healthy instance of name.
func Lookup(consulAddr, name string) (string, error) {
	client, err := newClient(consulAddr)
	if err != nil {
		return "", err
	}

	services, _, err := client.Health().Service(name, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query consul: %w", err)
	}
	if len(services) == 0 {
		return "", fmt.Errorf("no healthy %s services found", name)
	}

	service := services[0]
	addr := service.Service.Address
	if addr == "" {
		addr = service.Node.Address
	}
	return "http://" + net.JoinHostPort(addr, strconv.Itoa(service.Service.Port)), nil
}

func newClient(addr string) (*consul.Client, error) {
	config := consul.DefaultConfig()
	config.Address = addr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return client, nil
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
