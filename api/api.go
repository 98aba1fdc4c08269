// Package api is the local HTTP interface of the client. It serves the
// campaign projections and accepts writes, sealing plain amounts before they
// reach the contract gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/registry"
	"github.com/fundshadow/fundshadow-client/voting"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// APIConfig type represents the configuration for the API HTTP server. A
// zero Port makes the operating system choose one. Decimals is the number of
// decimals of plain amounts in requests, zero for amounts given in their
// smallest unit.
type APIConfig struct {
	Host     string
	Port     int
	Decimals uint8
	Gateway  *gateway.Gateway
	Registry *registry.Registry
	Voting   *voting.Manager
}

// API type represents the API HTTP server.
type API struct {
	router   *chi.Mux
	server   *http.Server
	addr     net.Addr
	decimals uint8
	gateway  *gateway.Gateway
	registry *registry.Registry
	voting   *voting.Manager
}

// New creates a new API instance with the given configuration and starts
// serving it.
func New(conf *APIConfig) (*API, error) {
	a, err := NewHandler(conf)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", a.addr.String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	return a, nil
}

// NewHandler builds the API without starting a server. Tests mount its
// router on an httptest server.
func NewHandler(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Gateway == nil || conf.Registry == nil || conf.Voting == nil {
		return nil, fmt.Errorf("missing gateway, registry or voting manager")
	}
	a := &API{
		decimals: conf.Decimals,
		gateway:  conf.Gateway,
		registry: conf.Registry,
		voting:   conf.Voting,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on, nil if it was built with
// NewHandler.
func (a *API) Addr() net.Addr {
	return a.addr
}

// Close stops the server, waiting for in flight requests until ctx is done.
func (a *API) Close(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	routes := []struct {
		method, endpoint string
		handler          http.HandlerFunc
	}{
		{http.MethodGet, PingEndpoint, func(w http.ResponseWriter, r *http.Request) { httpWriteOK(w) }},
		{http.MethodGet, MetricsEndpoint, func(w http.ResponseWriter, r *http.Request) { metrics.WritePrometheus(w, true) }},
		{http.MethodGet, CampaignsEndpoint, a.campaigns},
		{http.MethodPost, CampaignsEndpoint, a.newCampaign},
		{http.MethodGet, CampaignEndpoint, a.campaign},
		{http.MethodGet, CampaignDonationsEndpoint, a.campaignDonations},
		{http.MethodPost, CampaignDonationsEndpoint, a.newDonation},
		{http.MethodGet, CampaignReportsEndpoint, a.campaignReports},
		{http.MethodPost, CampaignReportsEndpoint, a.newReport},
		{http.MethodPost, CampaignWithdrawEndpoint, a.withdraw},
		{http.MethodGet, CampaignVoteEndpoint, a.voteSession},
		{http.MethodPost, CampaignVoteEndpoint, a.vote},
		{http.MethodGet, DonationEndpoint, a.donation},
		{http.MethodPut, OwnProfileEndpoint, a.updateProfile},
		{http.MethodGet, DonorEndpoint, a.donor},
		{http.MethodGet, DonorCampaignsEndpoint, a.donorCampaigns},
		{http.MethodGet, DashboardEndpoint, a.dashboard},
		{http.MethodGet, TxEndpoint, a.tx},
	}
	for _, route := range routes {
		log.Debugw("register handler", "endpoint", route.endpoint, "method", route.method)
		a.router.Method(route.method, route.endpoint, route.handler)
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Withf("no endpoint %s %s", r.Method, r.URL.Path).Write(w)
	})

	a.registerHandlers()
}
