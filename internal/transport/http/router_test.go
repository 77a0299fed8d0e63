package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/identify"
	"appraiser-gateway/internal/platform/metrics"
	"appraiser-gateway/internal/registration"
	"appraiser-gateway/internal/session"
	dErrors "appraiser-gateway/pkg/domain-errors"
	"appraiser-gateway/pkg/testutil"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, identity directory.ClaimedIdentity) (directory.BoundRegistration, error) {
	if identity.Normalized().Name != "Jane Doe" {
		return directory.BoundRegistration{}, dErrors.New(dErrors.CodeNotFound, "appraiser not registered")
	}
	return directory.BoundRegistration{
		ID:       42,
		Name:     "Jane Doe",
		BankName: "First National",
		Unit:     identity.Unit,
	}, nil
}

type fakeMatcher struct {
	outcome biometric.MatchOutcome
}

func (m *fakeMatcher) Match(_ context.Context, _ biometric.CapturedImage, _ directory.BoundRegistration) (biometric.MatchOutcome, error) {
	return m.outcome, nil
}

type testEnv struct {
	router  http.Handler
	tokens  *session.TokenService
	matcher *fakeMatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())

	tokens := session.NewTokenService("test-signing-key", time.Hour)
	sessionStore := session.NewMemoryStore()
	issuer, err := session.NewIssuer(sessionStore, tokens, session.WithLogger(logger))
	require.NoError(t, err)

	matcher := &fakeMatcher{outcome: biometric.MatchOutcome{
		Kind:       biometric.OutcomeMatched,
		Confidence: 92,
		Profile:    &biometric.Profile{ID: "prof-7", RegistrationID: 42, Name: "Jane Doe"},
	}}

	workflow, err := identify.New(fakeVerifier{}, matcher,
		identify.WithLogger(logger),
		identify.WithMetrics(m),
		identify.WithSessionIssuer(issuer),
	)
	require.NoError(t, err)

	regService, err := registration.New(registration.NewMemoryStore(), registration.WithLogger(logger))
	require.NoError(t, err)

	handler := NewHandler(
		NewIdentifyHandler(workflow, logger),
		NewRegistrationHandler(regService, logger),
		NewSessionHandler(sessionStore, logger),
		session.NewTokenServiceAdapter(tokens),
		logger,
		m,
	)
	return &testEnv{router: handler.Routes(), tokens: tokens, matcher: matcher}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *struct {
	Code int
	Body map[string]json.RawMessage
} {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	rec := testutil.DoRequest(e.router, req)

	decoded := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return &struct {
		Code int
		Body map[string]json.RawMessage
	}{Code: rec.Code, Body: decoded}
}

func fieldString(t *testing.T, body map[string]json.RawMessage, key string) string {
	t.Helper()
	raw, ok := body[key]
	require.True(t, ok, "missing field %q", key)
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func (e *testEnv) startAttempt(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/attempts", map[string]string{})
	require.Equal(t, http.StatusCreated, resp.Code)
	return fieldString(t, resp.Body, "id")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentificationFlow(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	resp := env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/identity", map[string]any{
		"name": "Jane Doe", "bank_id": 1, "branch_id": 2,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "Jane Doe", fieldString(t, resp.Body, "name"))

	resp = env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/capture", map[string]string{
		"image": "aGVsbG8=",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "identified", fieldString(t, resp.Body, "kind"))

	resp = env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	sessionID := fieldString(t, resp.Body, "session_id")
	token := fieldString(t, resp.Body, "access_token")
	require.NotEmpty(t, token)

	// The issued token grants access to its own session record.
	req := testutil.NewRequest(t, http.MethodGet, "/api/session/"+sessionID)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := testutil.DoRequest(env.router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Jane Doe")
}

func TestSessionEndpointRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/api/session/00000000-0000-0000-0000-000000000001"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionEndpointScopedToOwnSession(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/identity", map[string]any{
		"name": "Jane Doe", "bank_id": 1, "branch_id": 2,
	})
	env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/capture", map[string]string{"image": "aGVsbG8="})
	resp := env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/session", nil)
	token := fieldString(t, resp.Body, "access_token")

	req := testutil.NewRequest(t, http.MethodGet, "/api/session/00000000-0000-0000-0000-000000000001")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := testutil.DoRequest(env.router, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownIdentityReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	resp := env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/identity", map[string]any{
		"name": "John Smith", "bank_id": 1, "branch_id": 2,
	})
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Contains(t, fieldString(t, resp.Body, "error_description"), "not registered")
}

func TestCaptureBeforeIdentityConflicts(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	resp := env.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/capture", map[string]string{"image": "aGVsbG8="})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestMalformedAttemptID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/attempts/not-a-uuid/identity", map[string]any{"name": "Jane Doe"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelAttempt(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	req := testutil.NewRequest(t, http.MethodDelete, "/api/attempts/"+attemptID)
	rec := testutil.DoRequest(env.router, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/api/attempts/"+attemptID))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressEvents(t *testing.T) {
	env := newTestEnv(t)
	attemptID := env.startAttempt(t)

	rec := testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/api/attempts/"+attemptID+"/events"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "started")
}

func TestListAppraisersByUnit(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/appraiser", map[string]any{
		"name": "Jane Doe", "email": "jane@example.com",
		"bank_id": 1, "branch_id": 2,
		"registrar_role": "super_admin",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	rec := testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/api/appraiser?bank_id=1&branch_id=2"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "jane@example.com")

	rec = testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/api/appraiser?bank_id=1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttemptCreationRateLimited(t *testing.T) {
	env := newTestEnv(t)

	for range defaultRatePolicy.Limit {
		resp := env.do(t, http.MethodPost, "/api/attempts", map[string]string{})
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/attempts", map[string]string{})
	rec := testutil.DoRequest(env.router, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestRegisterAppraiser(t *testing.T) {
	env := newTestEnv(t)

	t.Run("super admin registers anywhere", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/appraiser", map[string]any{
			"name": "Jane Doe", "email": "jane@example.com",
			"bank_id": 1, "branch_id": 2,
			"registrar_role": "super_admin",
		})
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("branch admin cannot cross branches", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/appraiser", map[string]any{
			"name": "John Smith", "email": "john@example.com",
			"bank_id": 1, "branch_id": 9,
			"registrar_role": "branch_admin", "registrar_bank_id": 1, "registrar_branch_id": 2,
		})
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/appraiser", map[string]any{
			"name": "Ann Appraiser", "email": "ann@example.com",
			"bank_id": 1, "branch_id": 2,
			"registrar_role": "auditor",
		})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		require.Contains(t, strings.ToLower(fieldString(t, resp.Body, "error_description")), "invalid registrar role")
	})
}
