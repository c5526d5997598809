package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ThreadSentinel/internal/accounts"
	"ThreadSentinel/internal/model"
)

const requestTimeout = 60 * time.Second

// Runner starts cycles and reports status.
type Runner interface {
	RunNow(ctx context.Context) (*model.CycleResult, error)
	Status(ctx context.Context) (*model.StatusSnapshot, error)
}

// AccountAdmin is the operator side of the account pool.
type AccountAdmin interface {
	Summaries(ctx context.Context) ([]accounts.Summary, error)
	Reset(ctx context.Context, accountID string) error
}

// BreakerAdmin resets breakers.
type BreakerAdmin interface {
	Reset(ctx context.Context, workerType string) error
}

// Store is the read side the API exposes directly.
type Store interface {
	Ping(ctx context.Context) error
	RecentPosted(ctx context.Context, limit int) ([]*model.PostedRecord, error)
	RecentCycles(ctx context.Context, limit int) ([]*model.CycleResult, error)
}

// Handler serves the admin API.
type Handler struct {
	runner   Runner
	accounts AccountAdmin
	breakers BreakerAdmin
	store    Store
}

func NewHandler(runner Runner, accts AccountAdmin, breakers BreakerAdmin, store Store) *Handler {
	return &Handler{runner: runner, accounts: accts, breakers: breakers, store: store}
}

// NewRouter mounts the health check and the /v1 operator routes. A non-empty
// token requires "Authorization: Bearer <token>" on /v1.
func NewRouter(h *Handler, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.With(middleware.Timeout(requestTimeout)).Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(token))
		// A manual cycle can run for minutes; it is exempt from the request timeout.
		r.Post("/cycles", h.runCycle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/status", h.status)
			r.Get("/cycles", h.recentCycles)
			r.Get("/accounts", h.listAccounts)
			r.Post("/accounts/{account_id}/reset", h.resetAccount)
			r.Post("/breakers/{worker_type}/reset", h.resetBreaker)
			r.Get("/posted", h.recentPosted)
		})
	})
	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
