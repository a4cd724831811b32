package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.Count(r.Context(), store.KindChannels)
	if err != nil {
		writeErr(w, r, http.StatusServiceUnavailable, fmt.Errorf("store: %w", err))
		return
	}
	dates, err := s.store.Count(r.Context(), store.KindDates)
	if err != nil {
		writeErr(w, r, http.StatusServiceUnavailable, fmt.Errorf("store: %w", err))
		return
	}
	resp := map[string]any{"status": "ok", "channels": channels, "dates": dates}
	if s.opts.RunState != nil {
		resp["run_in_progress"] = s.opts.RunState.Held(r.Context())
	}
	if s.queue != nil {
		if n, err := s.queue.Len(r.Context()); err == nil {
			resp["pending_runs"] = n
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// --- guide ---

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ChannelFilter{
		Provider: q.Get("provider"),
		Category: q.Get("category"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", q.Get("limit")))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid offset: %s", q.Get("offset")))
		return
	}
	filter = filter.Normalize()

	channels, err := s.store.ListChannels(r.Context(), filter)
	if err != nil {
		writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"channels": channels,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, err := s.store.GetChannel(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, r, http.StatusNotFound, fmt.Errorf("channel %s not found", id))
			return
		}
		writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ch)
}

func (s *Server) handleListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.store.ListDates(r.Context())
	if err != nil {
		writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	if dates == nil {
		dates = []models.Date{}
	}
	writeJSON(w, r, http.StatusOK, dates)
}

// --- runs ---

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, r, http.StatusNotFound, errors.New("no run recorded yet"))
			return
		}
		writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"run":     run,
		"partial": run.Partial(),
	})
}

type requestRunBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRequestRun(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeErr(w, r, http.StatusServiceUnavailable, errors.New("run queue is not configured (set REDIS_URL)"))
		return
	}
	var body requestRunBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "api"
	}
	job := cache.RefreshJob{ID: uuid.NewString(), RequestedAt: s.now().UTC(), Reason: body.Reason}
	if err := s.queue.Push(r.Context(), job); err != nil {
		writeErr(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, job)
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.From(r.Context()).Error("write_json", "err", err)
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		logctx.From(r.Context()).Error("request_failed", "status", status, "err", err)
	}
	writeJSON(w, r, status, APIError{
		Status:    status,
		Error:     http.StatusText(status),
		Detail:    err.Error(),
		RequestID: chimw.GetReqID(r.Context()),
	})
}
