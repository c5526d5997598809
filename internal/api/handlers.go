package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/store"
	"ThreadSentinel/internal/trigger"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type postedDTO struct {
	CampaignID   string    `json:"campaign_id"`
	DiscussionID string    `json:"discussion_id"`
	Subreddit    string    `json:"subreddit"`
	Score        float64   `json:"score"`
	AccountID    string    `json:"account_id"`
	CommentURL   string    `json:"comment_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"store": "ok"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.runner.Status(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, st)
}

// runCycle runs the cycle detached from the request so a disconnecting
// client does not interrupt it mid-way.
func (h *Handler) runCycle(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.RunNow(context.WithoutCancel(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	sums, err := h.accounts.Summaries(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, sums)
}

func (h *Handler) resetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")
	if err := h.accounts.Reset(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"account_id": id})
}

func (h *Handler) resetBreaker(w http.ResponseWriter, r *http.Request) {
	worker := chi.URLParam(r, "worker_type")
	if worker != breaker.WorkerPosting {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown worker type "+worker)
		return
	}
	if err := h.breakers.Reset(r.Context(), worker); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"worker_type": worker})
}

func (h *Handler) recentCycles(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	runs, err := h.store.RecentCycles(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, runs)
}

func (h *Handler) recentPosted(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	recs, err := h.store.RecentPosted(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]postedDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, postedDTO{
			CampaignID:   rec.CampaignID,
			DiscussionID: rec.DiscussionID,
			Subreddit:    rec.Subreddit,
			Score:        rec.Score,
			AccountID:    rec.AccountID,
			CommentURL:   rec.CommentURL,
			CreatedAt:    rec.CreatedAt.UTC(),
		})
	}
	writeSuccess(w, http.StatusOK, out)
}

// queryLimit parses ?limit=, defaulting to 50. It writes the 400 itself.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 500 {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "limit must be between 1 and 500")
		return 0, false
	}
	return n, true
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, trigger.ErrCycleRunning):
		writeError(w, r, http.StatusConflict, "cycle_running", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("[ERROR] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Status: "error",
		Error:  errorPayload{Code: code, Message: message, RequestID: middleware.GetReqID(r.Context())},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}
