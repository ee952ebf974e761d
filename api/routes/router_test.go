package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinetworks/contractor-backend/api/controllers"
	"github.com/cabinetworks/contractor-backend/internal/acceptance"
	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/internal/manufacturers"
	"github.com/cabinetworks/contractor-backend/internal/sessions"
	pkgAuth "github.com/cabinetworks/contractor-backend/pkg/auth"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"github.com/google/uuid"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubAcceptor struct {
	requests []acceptance.Request
	created  bool
	err      error
}

func (s *stubAcceptor) Accept(_ context.Context, req acceptance.Request) (*acceptance.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &acceptance.Result{
		Created: s.created,
		Order: &models.Order{
			ID:              11,
			OrderNumber:     "ORD-0001-101526",
			Status:          enums.OrderStatusNew,
			GrandTotalCents: 128121,
			Currency:        "USD",
		},
		Payment: &models.Payment{ID: 5, Status: enums.PaymentStatusPending, AmountCents: 128121},
	}, nil
}

type stubIssuer struct {
	inputs []sessions.IssueInput
}

func (s *stubIssuer) Issue(_ context.Context, in sessions.IssueInput) (*sessions.Issued, error) {
	s.inputs = append(s.inputs, in)
	return &sessions.Issued{ID: uuid.New(), Token: "tok", ExpiresAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}, nil
}

type stubManufacturers struct {
	opts []manufacturers.Options
}

func (s *stubManufacturers) Document(_ context.Context, orderID int64) (*models.Order, documents.Document, error) {
	if orderID != 11 {
		return nil, documents.Document{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &models.Order{ID: 11, OrderNumber: "ORD-0001-101526"}, documents.Document{OrderNumber: "ORD-0001-101526"}, nil
}

func (s *stubManufacturers) Notify(_ context.Context, _ int64, opts manufacturers.Options) (*manufacturers.Result, error) {
	s.opts = append(s.opts, opts)
	status := "sent"
	if opts.DryRun {
		status = "dry_run"
	}
	return &manufacturers.Result{Status: status, Recipient: "orders@oakline.test", PDFBytes: 2048}, nil
}

type stubRenderer struct{}

func (stubRenderer) RenderPDF(context.Context, documents.Document) ([]byte, error) {
	return []byte("%PDF-1.3 stub %%EOF"), nil
}

func (stubRenderer) RenderHTML(doc documents.Document) ([]byte, error) {
	return []byte("<h1>" + doc.OrderNumber + "</h1>"), nil
}

type harness struct {
	cfg           *config.Config
	handler       http.Handler
	acceptor      *stubAcceptor
	issuer        *stubIssuer
	manufacturers *stubManufacturers
}

func newHarness(t *testing.T, readiness map[string]controllers.Pinger) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "contractor", ExpirationMinutes: 60},
	}
	h := &harness{
		cfg:           cfg,
		acceptor:      &stubAcceptor{created: true},
		issuer:        &stubIssuer{},
		manufacturers: &stubManufacturers{},
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total"}))
	h.handler = NewRouter(cfg, nil, Services{
		Acceptor:      h.acceptor,
		Sessions:      h.issuer,
		Manufacturers: h.manufacturers,
		Renderer:      stubRenderer{},
		Readiness:     readiness,
		Gatherer:      reg,
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.UserRole, groupID *int64) string {
	t.Helper()
	tok, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: 21, Role: role, GroupID: groupID})
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *harness) do(method, path, auth, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": nil})
	rec := h.do(http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Contractor-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = h.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{err: errors.New("down")}})
	rec = failing.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "router_test_total")
}

func TestAuthenticatedAccept(t *testing.T) {
	h := newHarness(t, nil)
	groupID := int64(3)

	rec := h.do(http.MethodPost, "/api/v1/proposals/7/accept", h.token(t, enums.UserRoleContractor, &groupID),
		`{"client_totals":{"grand_total_cents":128121}}`, "X-Forwarded-For", "198.51.100.4")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, true, data["created"])
	order := data["order"].(map[string]any)
	assert.Equal(t, "ORD-0001-101526", order["order_number"])
	assert.Equal(t, float64(128121), order["grand_total_cents"])
	payment := data["payment"].(map[string]any)
	assert.Equal(t, "pending", payment["status"])

	require.Len(t, h.acceptor.requests, 1)
	req := h.acceptor.requests[0]
	assert.Equal(t, int64(7), req.ProposalID)
	require.NotNil(t, req.Principal)
	assert.Equal(t, int64(21), req.Principal.UserID)
	assert.Equal(t, enums.UserRoleContractor, req.Principal.Role)
	assert.Equal(t, &groupID, req.Principal.GroupID)
	assert.Equal(t, "198.51.100.4", req.IP)
	require.NotNil(t, req.ClientTotals)
	assert.Equal(t, int64(128121), req.ClientTotals.GrandTotalCents)
}

func TestRepeatedAcceptReturnsOK(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptor.created = false
	rec := h.do(http.MethodPost, "/api/v1/proposals/7/accept", h.token(t, enums.UserRoleAdmin, nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeData(t, rec)["created"])
}

func TestAcceptRequiresCredentials(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/v1/proposals/7/accept", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/proposals/7/accept", "Bearer not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.acceptor.requests)
}

func TestAcceptMapsPipelineErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"rate limited":   {pkgerrors.New(pkgerrors.CodeRateLimit, "too many accept attempts"), http.StatusTooManyRequests},
		"state conflict": {pkgerrors.New(pkgerrors.CodeStateConflict, "proposal cannot be accepted"), http.StatusUnprocessableEntity},
		"forbidden":      {pkgerrors.New(pkgerrors.CodeForbidden, "not your proposal"), http.StatusForbidden},
		"schema drift":   {pkgerrors.New(pkgerrors.CodeSchemaDrift, "schema update required"), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.acceptor.err = tc.err
			rec := h.do(http.MethodPost, "/api/v1/proposals/7/accept", h.token(t, enums.UserRoleStaff, nil), "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAcceptRejectsBadPathAndBody(t *testing.T) {
	h := newHarness(t, nil)
	auth := h.token(t, enums.UserRoleContractor, nil)

	rec := h.do(http.MethodPost, "/api/v1/proposals/abc/accept", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/proposals/7/accept", auth, `{"grand_total_cents":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.acceptor.requests)
}

func TestPublicAcceptPassesToken(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/public/proposals/7/accept", "", `{"token":"abc"}`, "X-Real-IP", "203.0.113.7")
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, h.acceptor.requests, 1)
	req := h.acceptor.requests[0]
	assert.Nil(t, req.Principal)
	assert.Equal(t, "abc", req.Token)
	assert.Equal(t, "203.0.113.7", req.IP)
}

func TestPublicAcceptInvalidSession(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptor.err = sessions.ErrInvalidSession()
	rec := h.do(http.MethodPost, "/api/public/proposals/7/accept", "", `{"token":"expired"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/v1/proposals/7/sessions", h.token(t, enums.UserRoleContractor, nil), `{"customer_email":"jordan@example.test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, "tok", data["token"])
	assert.NotEmpty(t, data["expires_at"])
	require.Len(t, h.issuer.inputs, 1)
	assert.Equal(t, "jordan@example.test", h.issuer.inputs[0].CustomerEmail)

	rec = h.do(http.MethodPost, "/api/v1/proposals/7/sessions", h.token(t, enums.UserRoleContractor, nil), `{"customer_email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/admin/v1/orders/11/manufacturer-document", h.token(t, enums.UserRoleContractor, nil), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/api/admin/v1/orders/11/manufacturer-resend", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestManufacturerDocument(t *testing.T) {
	h := newHarness(t, nil)
	auth := h.token(t, enums.UserRoleAdmin, nil)

	rec := h.do(http.MethodGet, "/api/admin/v1/orders/11/manufacturer-document", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="ORD-0001-101526.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec = h.do(http.MethodGet, "/api/admin/v1/orders/11/manufacturer-document?download=true", auth, "")
	assert.Equal(t, `attachment; filename="ORD-0001-101526.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = h.do(http.MethodGet, "/api/admin/v1/orders/11/manufacturer-document?format=html", auth, "")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "ORD-0001-101526")

	rec = h.do(http.MethodGet, "/api/admin/v1/orders/11/manufacturer-document?format=docx", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/admin/v1/orders/99/manufacturer-document", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManufacturerResend(t *testing.T) {
	h := newHarness(t, nil)
	auth := h.token(t, enums.UserRoleAdmin, nil)

	rec := h.do(http.MethodPost, "/api/admin/v1/orders/11/manufacturer-resend", auth, `{"no_send":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "dry_run", data["status"])
	assert.Equal(t, float64(2048), data["pdf_bytes"])

	rec = h.do(http.MethodPost, "/api/admin/v1/orders/11/manufacturer-resend", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []manufacturers.Options{{Force: true, DryRun: true}, {Force: true}}, h.manufacturers.opts)
}
