package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/internal/audit"
	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/internal/movements"
	products "github.com/angelmondragon/warehouse-backend/internal/products"
	"github.com/angelmondragon/warehouse-backend/internal/shrinkage"
	pkgAuth "github.com/angelmondragon/warehouse-backend/pkg/auth"
	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubMovementService struct {
	movements.Service
}

func (stubMovementService) GetInflow(_ context.Context, _ inventory.Actor, id uuid.UUID) (*movements.InflowDTO, error) {
	return &movements.InflowDTO{ID: id}, nil
}

func (stubMovementService) ReverseInflow(context.Context, inventory.Actor, uuid.UUID) error {
	return nil
}

type stubShrinkageService struct {
	shrinkage.Service
}

func (stubShrinkageService) Approve(_ context.Context, _ inventory.Actor, id uuid.UUID, _ *string) (*shrinkage.ReportDTO, error) {
	return &shrinkage.ReportDTO{ID: id, Status: enums.ShrinkageStatusApproved}, nil
}

func (stubShrinkageService) ListPending(context.Context, inventory.Actor, pagination.Params) (*shrinkage.PendingList, error) {
	return &shrinkage.PendingList{Items: []shrinkage.ReportDTO{}}, nil
}

type stubLotService struct{}

func (stubLotService) Get(_ context.Context, _ inventory.Actor, id uuid.UUID) (*lots.LotDTO, error) {
	return &lots.LotDTO{ID: id}, nil
}

type stubAuditService struct {
	audit.Service
}

type stubProductService struct {
	products.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, dbP stubPinger) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		dbP,
		nil,
		nil,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		stubMovementService{},
		stubShrinkageService{},
		stubLotService{},
		stubAuditService{},
		stubProductService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.MemberRole) string {
	t.Helper()
	warehouseID := uuid.New()
	token, err := pkgAuth.Sign(cfg.JWT, pkgAuth.Identity{
		UserID:      uuid.New(),
		WarehouseID: &warehouseID,
		Role:        role,
	}, time.Now())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	if resp := serve(router, http.MethodGet, "/health/live", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected live 200 got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/metrics", ""); resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "metrics") {
		t.Fatalf("expected metrics handler got %d", resp.Code)
	}
}

func TestReadinessFailsWhenDatabaseIsDown(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{err: context.DeadlineExceeded})
	if resp := serve(router, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	resp := serve(router, http.MethodGet, "/api/v1/lots/"+uuid.NewString(), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPIServesAuthenticatedReads(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	token := buildToken(t, cfg, enums.MemberRoleWorker)

	for _, target := range []string{
		"/api/v1/lots/" + uuid.NewString(),
		"/api/v1/inflows/" + uuid.NewString(),
		"/api/v1/shrinkage/pending",
	} {
		if resp := serve(router, http.MethodGet, target, token); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", target, resp.Code)
		}
	}
}

func TestShrinkageResolutionRequiresSupervisor(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	target := "/api/v1/shrinkage/" + uuid.NewString() + "/approve"

	if resp := serve(router, http.MethodPost, target, buildToken(t, cfg, enums.MemberRoleWorker)); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for worker got %d", resp.Code)
	}
	if resp := serve(router, http.MethodPost, target, buildToken(t, cfg, enums.MemberRoleAdmin)); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin got %d", resp.Code)
	}
	if resp := serve(router, http.MethodPost, target, buildToken(t, cfg, enums.MemberRoleSupervisor)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for supervisor got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	target := "/api/admin/v1/inflows/" + uuid.NewString()

	if resp := serve(router, http.MethodDelete, target, buildToken(t, cfg, enums.MemberRoleSupervisor)); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for supervisor got %d", resp.Code)
	}
	if resp := serve(router, http.MethodDelete, target, buildToken(t, cfg, enums.MemberRoleAdmin)); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin got %d", resp.Code)
	}
}
