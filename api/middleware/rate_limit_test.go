package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWriteRateLimitBlocksPerUser(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(NewRateLimitPolicy("writes", time.Minute, 2), store, nil)(okHandler())
	actor := inventory.Actor{UserID: uuid.New(), Role: enums.MemberRoleWorker}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inflows", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("expected success before limit, got %d", rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/inflows", nil)
	other = other.WithContext(WithActor(other.Context(), inventory.Actor{UserID: uuid.New(), Role: enums.MemberRoleWorker}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other user to pass, got %d", rec.Code)
	}
}

func TestWriteRateLimitIgnoresReads(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(NewRateLimitPolicy("writes", time.Minute, 1), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/lots/abc", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected reads to pass, got %d", rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("expected no counters for reads, got %v", store.counts)
	}
}

func TestWriteRateLimitFallsBackToIP(t *testing.T) {
	store := newFakeRateStore()
	handler := WriteRateLimit(NewRateLimitPolicy("writes", time.Minute, 1), store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/admin/v1/inflows/abc", nil)
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
	if _, ok := store.counts["writes:ip:5.6.7.8"]; !ok {
		t.Fatalf("expected ip scoped counter, got %v", store.counts)
	}
}

func TestWriteRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := WriteRateLimit(NewRateLimitPolicy("writes", 0, 0), newFakeRateStore(), nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inflows", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass through, got %d", rec.Code)
	}
}
