package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"tipvault/gateway/idempotency"
	"tipvault/gateway/middleware"
	"tipvault/sdk/tipvault"
)

// Scopes required by the protected route groups.
const (
	ScopeSubmit = "tips:submit"
	ScopeRPC    = "node:rpc"
)

// Rate limit keys referenced by the route groups. Budgets are configured on
// the RateLimiter under these names.
const (
	RateKeyReads  = "reads"
	RateKeySubmit = "submit"
	RateKeyRPC    = "rpc"
)

type Config struct {
	// Node serves the public read endpoints.
	Node *tipvault.Client
	// SubmitTarget is the node RPC endpoint submissions are forwarded to.
	SubmitTarget *url.URL
	// NodeAuthToken is attached as the bearer token on forwarded submissions.
	NodeAuthToken string
	SubmitTimeout time.Duration
	Idempotency   *idempotency.Store
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// New assembles the public router: anonymous read endpoints, the
// scope-guarded submission bridge, an operator JSON-RPC passthrough, and the
// metrics/health endpoints.
func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, fmt.Errorf("node client required")
	}
	if cfg.SubmitTarget == nil {
		return nil, fmt.Errorf("submit target required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	submit, err := newSubmitRoutes(cfg.SubmitTarget, cfg.NodeAuthToken, cfg.SubmitTimeout, cfg.Idempotency, logger)
	if err != nil {
		return nil, fmt.Errorf("configure submission routes: %w", err)
	}
	reads := &readRoutes{client: cfg.Node}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(gr chi.Router) {
			if cfg.RateLimiter != nil {
				gr.Use(cfg.RateLimiter.Middleware(RateKeyReads))
			}
			if obs != nil {
				gr.Use(obs.Middleware("reads"))
			}
			reads.mount(gr)
		})
		v1.Group(func(gr chi.Router) {
			if cfg.RateLimiter != nil {
				gr.Use(cfg.RateLimiter.Middleware(RateKeySubmit))
			}
			if cfg.Authenticator != nil {
				gr.Use(cfg.Authenticator.Middleware(ScopeSubmit))
			}
			if obs != nil {
				gr.Use(obs.Middleware("submit"))
			}
			submit.mount(gr)
		})
	})

	// Raw JSON-RPC passthrough for operator tooling. Callers present their
	// own node credentials; the gateway only gates and meters access.
	r.Route("/rpc", func(pr chi.Router) {
		if cfg.RateLimiter != nil {
			pr.Use(cfg.RateLimiter.Middleware(RateKeyRPC))
		}
		if cfg.Authenticator != nil {
			pr.Use(cfg.Authenticator.Middleware(ScopeRPC))
		}
		if obs != nil {
			pr.Use(obs.Middleware("rpc"))
		}
		proxy := NewProxy(cfg.SubmitTarget, "/rpc", logger)
		pr.Handle("/", proxy)
		pr.Handle("/*", proxy)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
