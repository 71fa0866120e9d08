package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shortlink/internal/analytics"
	"shortlink/internal/shortcode"
	"shortlink/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvents struct {
	events []types.ClickEvent
}

func (s *stubEvents) ClicksByMapping(_ context.Context, mappingIDs []int64, from, to time.Time) ([]types.ClickEvent, error) {
	var out []types.ClickEvent
	for _, ev := range s.events {
		for _, id := range mappingIDs {
			if ev.MappingID == id && !ev.OccurredAt.Before(from) && ev.OccurredAt.Before(to) {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *memStore, *captureRecorder, *stubEvents) {
	t.Helper()
	store := newMemStore()
	cache := newMemCache()
	recorder := &captureRecorder{}
	events := &stubEvents{}

	shortener := NewShortener(store, cache, shortcode.NewGenerator(7), 5, time.Minute)
	resolver := NewResolver(store, cache, recorder, time.Minute)
	aggregator := analytics.NewAggregator(events, store)

	return NewServer("8080", "http://sho.rt", resolver, shortener, aggregator, store), store, recorder, events
}

func insertMapping(t *testing.T, store *memStore, code, target string) *types.Mapping {
	t.Helper()
	m := &types.Mapping{
		ShortCode: code,
		TargetURL: target,
		OwnerRef:  42,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertMapping(context.Background(), m))
	return m
}

func TestHandleRedirect(t *testing.T) {
	srv, store, recorder, _ := newTestServer(t)
	insertMapping(t, store, "abc1234", "https://example.com/page")
	handler := srv.Handler()

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/abc1234", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
		assert.Len(t, recorder.recorded(), 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestHandleCreate(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	handler := srv.Handler()

	t.Run("Created", func(t *testing.T) {
		body := strings.NewReader(`{"url": "https://example.com/long/path"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/links", body)
		req.Header.Set("X-Owner-Ref", "42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp createResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.ShortCode, 7)
		assert.Equal(t, "http://sho.rt/"+resp.ShortCode, resp.ShortURL)
		assert.Equal(t, "https://example.com/long/path", resp.TargetURL)
	})

	t.Run("InvalidURL", func(t *testing.T) {
		body := strings.NewReader(`{"url": "not a url"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/links", body)
		req.Header.Set("X-Owner-Ref", "42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingOwner", func(t *testing.T) {
		body := strings.NewReader(`{"url": "https://example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/links", body)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleClicks(t *testing.T) {
	srv, store, _, events := newTestServer(t)
	m := insertMapping(t, store, "abc1234", "https://example.com/page")
	now := time.Now().UTC()
	events.events = []types.ClickEvent{
		{ID: uuid.New(), MappingID: m.ID, ShortCode: m.ShortCode, OccurredAt: now.Add(-time.Minute)},
	}
	handler := srv.Handler()

	t.Run("OK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/links/abc1234/clicks", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got []types.ClickEvent
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Len(t, got, 1)
	})

	t.Run("ReversedRange", func(t *testing.T) {
		from := now.Format(time.RFC3339)
		to := now.Add(-time.Hour).Format(time.RFC3339)
		req := httptest.NewRequest(http.MethodGet,
			"/api/links/abc1234/clicks?from="+from+"&to="+to, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/links/missing/clicks", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleOwnerReport(t *testing.T) {
	srv, store, _, events := newTestServer(t)
	m := insertMapping(t, store, "abc1234", "https://example.com/page")
	events.events = []types.ClickEvent{
		{ID: uuid.New(), MappingID: m.ID, ShortCode: m.ShortCode, OccurredAt: time.Now().UTC().Add(-time.Minute)},
	}
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("X-Owner-Ref", "42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var reports []analytics.MappingReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "abc1234", reports[0].Mapping.ShortCode)
	assert.Len(t, reports[0].Clicks, 1)
}

func TestHandleQR(t *testing.T) {
	srv, store, _, _ := newTestServer(t)
	insertMapping(t, store, "abc1234", "https://example.com/page")
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/links/abc1234/qr", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}
