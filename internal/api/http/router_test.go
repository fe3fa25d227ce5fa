package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/hostel-dispatch/internal/auth"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

type stubDirectory struct {
	repository.StaffRepository
	users map[string]domain.User
}

func (s *stubDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

type stubCore struct {
	handlers.TicketAPI
	handlers.AssignmentAPI
	handlers.MappingAPI
	handlers.StaffAPI

	scanDryRun *bool
	escalateErr error
}

func (s *stubCore) GetTicket(_ context.Context, _ domain.Actor, id string) (*domain.Ticket, error) {
	if id == "boom" {
		panic("exploded")
	}
	return &domain.Ticket{ID: id, Status: domain.TicketStatusOpen}, nil
}

func (s *stubCore) History(_ context.Context, ticketID string) (*service.EscalationHistory, error) {
	return &service.EscalationHistory{TicketID: ticketID, Status: domain.EscalationStatusNone}, nil
}

func (s *stubCore) ManualEscalate(context.Context, service.ManualEscalationInput, domain.Actor) (*domain.Escalation, error) {
	return nil, s.escalateErr
}

func (s *stubCore) Resolve(context.Context, string, domain.Actor) (*domain.Escalation, error) {
	return nil, apperrors.NewAlreadyResolved("E-1")
}

func (s *stubCore) RunScan(_ context.Context, _ time.Time, dryRun bool) (*service.ScanReport, error) {
	s.scanDryRun = &dryRun
	return &service.ScanReport{DryRun: dryRun}, nil
}

func (s *stubCore) WorkloadStats(_ context.Context, staffID string) (*repository.WorkloadStats, error) {
	return &repository.WorkloadStats{StaffID: staffID, Total: 2, Active: 1, Completed: 1, CompletionRate: 0.5}, nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestApp(t *testing.T, core *stubCore, deps map[string]handlers.Pinger) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", 5)
	directory := &stubDirectory{users: map[string]domain.User{
		"STU": {ID: "STU", Role: domain.RoleStudent, Active: true},
		"S1":  {ID: "S1", Role: domain.RoleStaff, Active: true},
		"ADM": {ID: "ADM", Role: domain.RoleAdmin, Active: true},
	}}
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("hostel-dispatch", "test", deps),
		Tickets:        handlers.NewTicketsHandler(core, core, core),
		Escalations:    handlers.NewEscalationsHandler(core, core),
		Mappings:       handlers.NewMappingsHandler(core),
		Staff:          handlers.NewStaffHandler(core, core),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, directory).Handle,
		Metrics:        metrics,
	})
	return app, tokens
}

func bearer(t *testing.T, tokens *auth.TokenManager, id string, role domain.UserRole) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(id, role)
	require.NoError(t, err)
	return "Bearer " + token
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, path, authz, body string) (*nethttp.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRoutes_ErrorEnvelope(t *testing.T) {
	core := &stubCore{escalateErr: apperrors.NewConflict("ticket already escalated to this level", nil)}
	app, tokens := newTestApp(t, core, nil)
	student := bearer(t, tokens, "STU", domain.RoleStudent)
	staff := bearer(t, tokens, "S1", domain.RoleStaff)
	admin := bearer(t, tokens, "ADM", domain.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		authz  string
		body   string
		status int
		code   string
	}{
		{name: "missing token", method: "GET", path: "/tickets", status: 401, code: apperrors.CodeUnauthorized},
		{name: "unknown user", method: "GET", path: "/tickets/T-1", authz: bearer(t, tokens, "ghost", domain.RoleAdmin), status: 401, code: apperrors.CodeUnauthorized},
		{name: "staff cannot create tickets", method: "POST", path: "/tickets", authz: staff, body: `{}`, status: 403, code: apperrors.CodeForbidden},
		{name: "student cannot assign", method: "POST", path: "/tickets/T-1/assign", authz: student, body: `{"staff_id":"S1"}`, status: 403, code: apperrors.CodeForbidden},
		{name: "student cannot scan", method: "POST", path: "/admin/escalations/scan", authz: student, status: 403, code: apperrors.CodeForbidden},
		{name: "malformed json", method: "POST", path: "/tickets/T-1/assign", authz: admin, body: `{"staff_id":`, status: 400, code: apperrors.CodeValidation},
		{name: "service conflict", method: "POST", path: "/tickets/T-1/escalations", authz: staff, body: `{"level":2,"reason":"stuck"}`, status: 409, code: apperrors.CodeConflict},
		{name: "already resolved", method: "POST", path: "/escalations/E-1/resolve", authz: admin, status: 409, code: apperrors.CodeAlreadyResolved},
		{name: "other staff workload", method: "GET", path: "/staff/S2/workload", authz: staff, status: 403, code: apperrors.CodeForbidden},
		{name: "bad pagination", method: "GET", path: "/admin/mappings?limit=0", authz: admin, status: 400, code: apperrors.CodeValidation},
		{name: "panic is recovered", method: "GET", path: "/tickets/boom", authz: admin, status: 500, code: apperrors.CodeInternal},
		{name: "unknown route", method: "GET", path: "/nowhere", status: 404, code: apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := do(t, app, tt.method, tt.path, tt.authz, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(raw))

			var body errorBody
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestRoutes_ValidationDetails(t *testing.T) {
	app, tokens := newTestApp(t, &stubCore{}, nil)

	resp, raw := do(t, app, "POST", "/tickets", bearer(t, tokens, "STU", domain.RoleStudent), `{"category":"HVAC","priority":"URGENT"}`)
	assert.Equal(t, 400, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, apperrors.CodeValidation, body.Error.Code)
	assert.Contains(t, body.Error.Details, "title")
	assert.Contains(t, body.Error.Details, "hostel_block")
	assert.Contains(t, body.Error.Details, "priority")
}

func TestRoutes_ScanForwardsDryRun(t *testing.T) {
	core := &stubCore{}
	app, tokens := newTestApp(t, core, nil)

	resp, raw := do(t, app, "POST", "/admin/escalations/scan", bearer(t, tokens, "ADM", domain.RoleAdmin), `{"dry_run":true}`)
	require.Equal(t, 200, resp.StatusCode, string(raw))
	require.NotNil(t, core.scanDryRun)
	assert.True(t, *core.scanDryRun)

	var body struct {
		Data struct {
			DryRun  bool  `json:"dry_run"`
			Actions []any `json:"actions"`
			Skipped []any `json:"skipped"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.Data.DryRun)
	assert.NotNil(t, body.Data.Actions)
	assert.NotNil(t, body.Data.Skipped)
}

func TestRoutes_TicketDetailAndWorkload(t *testing.T) {
	app, tokens := newTestApp(t, &stubCore{}, nil)
	staff := bearer(t, tokens, "S1", domain.RoleStaff)

	resp, raw := do(t, app, "GET", "/tickets/T-7/escalations", staff, "")
	require.Equal(t, 200, resp.StatusCode, string(raw))
	assert.Contains(t, string(raw), `"ticket_id":"T-7"`)
	assert.Contains(t, string(raw), `"status":"NONE"`)

	resp, raw = do(t, app, "GET", "/staff/S1/workload", staff, "")
	require.Equal(t, 200, resp.StatusCode, string(raw))
	assert.Contains(t, string(raw), `"completion_rate":0.5`)
}

func TestHealth(t *testing.T) {
	healthy := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	app, _ := newTestApp(t, &stubCore{}, map[string]handlers.Pinger{"postgres": healthy})
	resp, _ := do(t, app, "GET", "/health/live", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	resp, raw := do(t, app, "GET", "/health/ready", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(raw), `"postgres":"ok"`)

	app, _ = newTestApp(t, &stubCore{}, map[string]handlers.Pinger{"postgres": healthy, "redis": down})
	resp, raw = do(t, app, "GET", "/health/ready", "", "")
	assert.Equal(t, 503, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "connection refused", body.Error.Details["redis"])

	resp, raw = do(t, app, "GET", "/metrics", "", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(raw), "# TYPE")
}
