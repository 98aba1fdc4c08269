package service

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fundshadow/fundshadow-client/api"
	"github.com/fundshadow/fundshadow-client/log"
)

// shutdownTimeout bounds the wait for in flight requests on Stop.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf   api.APIConfig
	api    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
	close  func()
}

// NewAPI creates a new APIService instance. The gateway, registry and voting
// manager of conf are used by every start of the service.
func NewAPI(conf *api.APIConfig) *APIService {
	return &APIService{conf: *conf}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(&as.conf)
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.api = a
	as.close = sync.OnceFunc(func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(sctx); err != nil {
			log.Warnw("failed to stop API server", "error", err.Error())
		}
	})
	ctx, as.cancel = context.WithCancel(ctx)
	go func(stop func()) {
		<-ctx.Done()
		stop()
	}(as.close)
	return nil
}

// Stop halts the API server, waiting for in flight requests.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.close()
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port the API server listens on. The port is
// the one chosen by the system if the configured one was zero.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil || as.api.Addr() == nil {
		return as.conf.Host, as.conf.Port
	}
	host, port, err := net.SplitHostPort(as.api.Addr().String())
	if err != nil {
		return as.conf.Host, as.conf.Port
	}
	p, _ := strconv.Atoi(port)
	return host, p
}
