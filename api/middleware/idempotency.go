package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/warehouse-backend/pkg/redis"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	dayTTL  = 24 * time.Hour
	weekTTL = 7 * 24 * time.Hour
	// pendingTTL bounds how long a crashed request blocks its key.
	pendingTTL = 2 * time.Minute
)

// idempotentRoutes lists the writes that require an Idempotency-Key. Paths
// are path.Match patterns over the request path.
var idempotentRoutes = []struct {
	method string
	path   string
	ttl    time.Duration
}{
	{http.MethodPost, "/api/v1/inflows", weekTTL},
	{http.MethodPost, "/api/v1/outflows", weekTTL},
	{http.MethodPost, "/api/v1/shrinkage", weekTTL},
	{http.MethodPost, "/api/v1/shrinkage/*/approve", weekTTL},
	{http.MethodPost, "/api/v1/shrinkage/*/reject", dayTTL},
	{http.MethodPost, "/api/admin/v1/products", dayTTL},
	{http.MethodPut, "/api/admin/v1/minimum-stock", dayTTL},
}

// storedResponse is what a key resolves to in redis. A record with
// Pending set marks a request still being processed.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key. Keys are scoped to the caller and path; reusing one with a
// different body is a 409, as is retrying while the first attempt runs.
// Server errors are not stored so the client may retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := idempotencyTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyKeyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, bodyReadError(err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(callerScope(r), clientKey)
			fingerprint := fingerprintRequest(r, body)

			prior, err := loadResponse(r, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key"))
				return
			}
			if prior == nil {
				reserved, err := reserve(r, store, key, fingerprint)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
					return
				}
				if !reserved {
					prior = &storedResponse{Pending: true, Fingerprint: fingerprint}
				}
			}
			if prior != nil {
				switch {
				case prior.Fingerprint != fingerprint:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
				case prior.Pending:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
				default:
					replay(w, prior)
				}
				return
			}

			capture := &capturingWriter{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			// writes outlive a disconnected client so the pending record is resolved
			storeCtx := context.WithoutCancel(ctx)
			status := capture.statusOr(http.StatusOK)
			if status >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			final := storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			// overwrite the pending record in place; the key is never absent
			// between reservation and the stored response
			if err := save(storeCtx, store, key, final, ttl); err != nil && logg != nil {
				logg.Error(ctx, "idempotency.save_failed", err)
			}
		})
	}
}

func idempotencyTTL(method, requestPath string) (time.Duration, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if matched, _ := path.Match(route.path, requestPath); matched {
			return route.ttl, true
		}
	}
	return 0, false
}

func callerScope(r *http.Request) string {
	ctx := r.Context()
	return UserIDFromContext(ctx) + "|" + WarehouseIDFromContext(ctx) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+" "+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func loadResponse(r *http.Request, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func reserve(r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string) (bool, error) {
	raw, err := json.Marshal(storedResponse{Pending: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(r.Context(), key, string(raw), pendingTTL)
}

func save(ctx context.Context, store pkgredis.IdempotencyStore, key string, resp storedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(raw), ttl)
}

func bodyReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
			WithDetails(map[string]any{"limit_bytes": tooLarge.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
}

func replay(w http.ResponseWriter, stored *storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// capturingWriter tees the response body so it can be stored.
type capturingWriter struct {
	statusRecorder
	body bytes.Buffer
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
