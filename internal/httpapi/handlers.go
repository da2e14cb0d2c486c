package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"time"

	"posthub.org/internal/auth"
	"posthub.org/internal/obs"
	"posthub.org/internal/posts"
)

const serviceName = "posthub-api"

// Pinger is anything the readiness probe can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the database and the revocation cache. Nil dependencies are skipped.
type ReadyProbe struct {
	DB    Pinger
	Cache Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	var errs []error
	if rp.DB != nil {
		if err := rp.DB.Ping(ctx); err != nil {
			errs = append(errs, errors.New("database: "+err.Error()))
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			errs = append(errs, errors.New("cache: "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

// API is the HTTP layer over the auth and posts services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth  *auth.Service
	posts posts.Service

	corsOrigins    []string
	trustedProxies []netip.Prefix
	ratePerSec     float64
	rateBurst      int
	maxBody        int64
}

// Option customizes API construction.
type Option func(*API)

// WithCORSOrigins allows cross-origin requests from the listed origins in
// addition to localhost.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.corsOrigins = append(a.corsOrigins, origins...) }
}

// WithTrustedProxies lists the reverse proxies whose X-Forwarded-For header
// is believed. Without any, the client is always the TCP peer.
func WithTrustedProxies(proxies ...netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = append(a.trustedProxies, proxies...) }
}

// WithLoginRateLimit bounds /users/login and /users/register per client IP.
// A zero rate disables limiting.
func WithLoginRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, postSvc posts.Service, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		posts:      postSvc,
		ratePerSec: 5,
		rateBurst:  10,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// users
	a.mux.Handle("POST /users/register", a.limited(http.HandlerFunc(a.register)))
	a.mux.Handle("POST /users/login", a.limited(http.HandlerFunc(a.login)))
	a.mux.Handle("POST /users/logout", a.withAuth(http.HandlerFunc(a.logout)))
	a.mux.Handle("POST /users/change-password", a.withAuth(http.HandlerFunc(a.changePassword)))
	a.mux.Handle("GET /users/me", a.withAuth(http.HandlerFunc(a.me)))

	// posts
	a.mux.Handle("POST /posts/create", a.withAuth(http.HandlerFunc(a.createPost)))
	a.mux.Handle("POST /posts/editing/{id}", a.withAuth(http.HandlerFunc(a.updatePost)))
	a.mux.Handle("GET /posts/read_all", a.withAuth(http.HandlerFunc(a.listPosts)))
	a.mux.Handle("GET /posts/count", a.withAuth(http.HandlerFunc(a.countPosts)))
	a.mux.Handle("GET /posts/{id}", a.withAuth(http.HandlerFunc(a.getPost)))
	a.mux.Handle("DELETE /posts/delete/{id}", a.withAuth(http.HandlerFunc(a.deletePost)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h, a.corsOrigins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = ClientIP(h, a.trustedProxies)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) limited(next http.Handler) http.Handler {
	if a.ratePerSec <= 0 {
		return next
	}
	return RateLimit(next, a.rateBurst, a.ratePerSec)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	obs.Logger().ErrorContext(r.Context(), op+" failed",
		"request_id", RequestIDFromContext(r.Context()), "error", err)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
