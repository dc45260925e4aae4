// Package http wires the login flow, the session userinfo endpoint, and the
// operational probes onto a ServeMux.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/d64ev/humhub-bridge/internal/bridge/metrics"
	"github.com/d64ev/humhub-bridge/internal/bridge/service"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/internal/bridge/token"
	"github.com/d64ev/humhub-bridge/pkg/httpx"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Pipeline *service.Pipeline
	Tokens   *token.Provider
	Registry *prometheus.Registry
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerUserinfo()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	loginHandler := &LoginHandler{
		Pipeline: r.Pipeline,
		Tokens:   r.Tokens,
		Logger:   r.logger,
	}

	// GET /login - lenient rate limit (just describes the challenge)
	r.Mux.Handle("GET /v1/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /login - strict rate limit by IP + username form field so a
	// single IP cannot brute-force one account within the IP budget.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)
}

func (r *Router) registerUserinfo() {
	userinfoHandler := &UserinfoHandler{Store: r.store}

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(http.HandlerFunc(userinfoHandler.Handle),
			SessionAuth(r.Tokens),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		LivezHandler(r.startTime, r.buildVersion),
	)
	r.Mux.Handle("GET /readyz",
		ReadyzHandler(r.startTime, r.buildVersion, r.store),
	)
	if r.Registry != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.Registry))
	}
}
