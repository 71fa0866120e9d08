package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shortlink/internal/analytics"
	"shortlink/internal/metrics"
	"shortlink/internal/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
)

type Server struct {
	port       string
	baseURL    string
	resolver   *Resolver
	shortener  *Shortener
	aggregator *analytics.Aggregator
	store      MappingStore
}

func NewServer(port, baseURL string, resolver *Resolver, shortener *Shortener, aggregator *analytics.Aggregator, store MappingStore) *Server {
	return &Server{
		port:       port,
		baseURL:    baseURL,
		resolver:   resolver,
		shortener:  shortener,
		aggregator: aggregator,
		store:      store,
	}
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}
	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{code}", s.handleRedirect)
	mux.HandleFunc("POST /api/links", s.handleCreate)
	mux.HandleFunc("GET /api/links/{code}/clicks", s.handleClicks)
	mux.HandleFunc("GET /api/links/{code}/qr", s.handleQR)
	mux.HandleFunc("GET /api/reports", s.handleOwnerReport)
	mux.Handle("GET /metrics", promhttp.Handler())
	return metrics.Middleware(mux)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	target, err := s.resolver.Resolve(r.Context(), code, clientIP(r))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		slog.Error("redirect lookup failed", "code", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

type createRequest struct {
	URL string `json:"url"`
}

type createResponse struct {
	ShortCode string    `json:"short_code"`
	ShortURL  string    `json:"short_url"`
	TargetURL string    `json:"target_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ownerRef, ok := ownerRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Owner-Ref header")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.shortener.Shorten(r.Context(), req.URL, ownerRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "invalid target url")
		case errors.Is(err, types.ErrExhaustedKeyspace):
			slog.Error("short code generation exhausted", "error", err)
			writeError(w, http.StatusServiceUnavailable, "could not allocate a short code")
		default:
			slog.Error("create mapping failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ShortCode: m.ShortCode,
		ShortURL:  s.baseURL + "/" + m.ShortCode,
		TargetURL: m.TargetURL,
		CreatedAt: m.CreatedAt,
	})
}

func (s *Server) handleClicks(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	m, err := s.store.MappingByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		slog.Error("clicks lookup failed", "code", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from/to parameters")
		return
	}

	events, err := s.aggregator.QueryClicks(r.Context(), []int64{m.ID}, from, to)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "start time is after end time")
			return
		}
		slog.Error("clicks query failed", "code", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleOwnerReport(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Owner-Ref header")
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from/to parameters")
		return
	}

	reports, err := s.aggregator.OwnerReport(r.Context(), owner, from, to)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "start time is after end time")
			return
		}
		slog.Error("owner report failed", "owner", owner, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if _, err := s.store.MappingByCode(r.Context(), code); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		slog.Error("qr lookup failed", "code", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	png, err := qrcode.Encode(s.baseURL+"/"+code, qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr encode failed", "code", code, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ownerRef reads the pre-validated owner identity the edge layer injects.
func ownerRef(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-Owner-Ref")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// timeRange parses optional RFC3339 from/to query parameters. from defaults
// to the zero time and to defaults to now, so an unbounded query is valid.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	to = time.Now().UTC()

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		to = t
	}
	return from, to, nil
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
