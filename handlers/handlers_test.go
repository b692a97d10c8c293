package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	jwtmiddleware "github.com/tech-arch1tect/phoneauth/middleware/jwt"
	"github.com/tech-arch1tect/phoneauth/middleware/ratelimit"
	"github.com/tech-arch1tect/phoneauth/openapi"
	"github.com/tech-arch1tect/phoneauth/services/carrier"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/loginlog"
	"github.com/tech-arch1tect/phoneauth/services/phoneauth"
	"github.com/tech-arch1tect/phoneauth/services/revocation"
	"github.com/tech-arch1tect/phoneauth/services/sms"
	"github.com/tech-arch1tect/phoneauth/services/smscode"
	"github.com/tech-arch1tect/phoneauth/testutils"
	"github.com/tech-arch1tect/phoneauth/testutils/mocks"
)

type captureDispatcher struct {
	mu   sync.Mutex
	sent []sms.Message
	err  error
}

func (d *captureDispatcher) Send(_ context.Context, msg sms.Message) (sms.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return sms.Receipt{}, d.err
	}
	d.sent = append(d.sent, msg)
	return sms.Receipt{DispatchID: "dispatch-" + msg.Phone}, nil
}

func (d *captureDispatcher) lastCode(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sent)
	return d.sent[len(d.sent)-1].Code
}

type testAPI struct {
	e          *echo.Echo
	auth       *AuthHandler
	dispatcher *captureDispatcher
	resolver   *mocks.MockResolver
	users      identity.Store
	recorder   *loginlog.Recorder
}

type apiSettings struct {
	deps         *phoneauth.Dependencies
	limit        *ratelimit.Config
	noRevocation bool
}

type apiOption func(*apiSettings)

func withSendLimit(rate int) apiOption {
	return func(s *apiSettings) {
		s.limit.Rate = rate
	}
}

func withDebug() apiOption {
	return func(s *apiSettings) {
		s.deps.DebugMode = true
	}
}

func withoutRevocation() apiOption {
	return func(s *apiSettings) {
		s.noRevocation = true
	}
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()

	db := testutils.SetupTestDB(t,
		&smscode.VerificationCode{},
		&identity.User{},
		&loginlog.LoginLog{},
		&revocation.RevokedToken{},
	)
	cfg := testutils.GetTestConfig()

	tokens := jwt.NewService(cfg, nil)

	codes := smscode.NewGormStore(db)
	users := identity.NewGormStore(db)
	recorder := loginlog.NewRecorder(db, nil)

	api := &testAPI{
		e:          echo.New(),
		dispatcher: &captureDispatcher{},
		resolver:   &mocks.MockResolver{},
		users:      users,
		recorder:   recorder,
	}

	deps := phoneauth.Dependencies{
		Codes:      codes,
		Limiter:    smscode.NewRateLimiter(codes, cfg.Verification.ResendWindow),
		Generator:  smscode.NewGenerator(cfg.Verification.CodeTTL),
		Dispatcher: api.dispatcher,
		Users:      users,
		Tokens:     tokens,
		Resolver:   api.resolver,
		Recorder:   recorder,
		Roles:      cfg.JWT.DefaultRoles,
	}
	limitCfg := &ratelimit.Config{
		Store:          ratelimit.NewMemoryStore(),
		Rate:           100,
		Period:         time.Minute,
		OnLimitReached: RateLimitedResponse,
	}
	settings := &apiSettings{deps: &deps, limit: limitCfg}
	for _, opt := range opts {
		opt(settings)
	}
	if !settings.noRevocation {
		tokens.SetRevocationService(revocation.NewService(revocation.NewMemoryStoreWithDB(db, nil), nil))
	}

	api.auth = NewAuthHandler(phoneauth.NewService(deps), users, tokens, nil)
	api.e.HTTPErrorHandler = ErrorHandler(nil)
	routes := &Routes{
		Auth:        api.auth,
		RequireJWT:  jwtmiddleware.RequireJWT(tokens),
		SendLimiter: ratelimit.Middleware(limitCfg),
		Document:    openapi.New("phoneauth", "test"),
		Logout:      !settings.noRevocation,
	}
	routes.Register(api.e)

	return api
}

func (a *testAPI) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1")
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, phone string) LoginResponse {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"`+phone+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/auth/sms/verify",
		`{"phone":"`+phone+`","code":"`+a.dispatcher.lastCode(t)+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusError, resp.Status)
	return resp
}

func TestSendCode(t *testing.T) {
	t.Run("dispatches code and reports expiry in epoch millis", func(t *testing.T) {
		api := newTestAPI(t)
		before := time.Now().UnixMilli()

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000","scene":"login"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SendCodeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "dispatch-13800138000", resp.DispatchID)
		assert.Empty(t, resp.DebugCode)
		assert.GreaterOrEqual(t, resp.ExpiresAt, before+(5*time.Minute).Milliseconds()-1000)
		assert.NotContains(t, rec.Body.String(), "debugCode")
	})

	t.Run("invalid phone", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"12800138000"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(phoneauth.KindInvalidPhoneFormat), decodeError(t, rec).Kind)
	})

	t.Run("unknown scene", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000","scene":"bogus"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(phoneauth.KindInvalidInput), decodeError(t, rec).Kind)
	})

	t.Run("malformed body", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(phoneauth.KindInvalidInput), decodeError(t, rec).Kind)
	})

	t.Run("resend within window is rate limited", func(t *testing.T) {
		api := newTestAPI(t)

		require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000"}`, "").Code)
		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000"}`, "")

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, string(phoneauth.KindRateLimited), decodeError(t, rec).Kind)
	})

	t.Run("dispatch failure maps to bad gateway", func(t *testing.T) {
		api := newTestAPI(t)
		api.dispatcher.err = errors.New("provider down")

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000"}`, "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(phoneauth.KindDispatchFailed), resp.Kind)
		assert.NotContains(t, resp.Message, "provider down")
	})

	t.Run("debug mode returns undelivered code", func(t *testing.T) {
		api := newTestAPI(t, withDebug())
		api.dispatcher.err = errors.New("provider down")

		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138000"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SendCodeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.DebugCode, 6)
		assert.True(t, strings.HasPrefix(resp.DispatchID, "dev_"))
	})

	t.Run("per-IP limiter rejects excess requests", func(t *testing.T) {
		api := newTestAPI(t, withSendLimit(2))

		for _, p := range []string{"13800138000", "13800138001"} {
			require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"`+p+`"}`, "").Code)
		}
		rec := api.do(t, http.MethodPost, "/api/auth/sms/send", `{"phone":"13800138002"}`, "")

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, string(phoneauth.KindRateLimited), decodeError(t, rec).Kind)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})
}

func TestVerifyCode(t *testing.T) {
	t.Run("first login creates a user", func(t *testing.T) {
		api := newTestAPI(t)
		before := time.Now().UnixMilli()

		resp := api.login(t, "13800138000")

		assert.Equal(t, StatusOK, resp.Status)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.UserID)
		assert.True(t, resp.IsNewUser)
		assert.Equal(t, "用户8000", resp.Profile.Nickname)
		assert.Equal(t, "13800138000", resp.Profile.Phone)
		assert.Greater(t, resp.TokenExpiresAt, before)

		logs, err := api.recorder.ListForUser(context.Background(), resp.UserID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, loginlog.LoginTypeSMS, logs[0].LoginType)
		assert.True(t, logs[0].Success)
	})

	t.Run("code cannot be reused", func(t *testing.T) {
		api := newTestAPI(t)
		api.login(t, "13800138000")

		rec := api.do(t, http.MethodPost, "/api/auth/sms/verify",
			`{"phone":"13800138000","code":"`+api.dispatcher.lastCode(t)+`"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(phoneauth.KindCodeInvalid), decodeError(t, rec).Kind)
	})

	t.Run("malformed code", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/sms/verify", `{"phone":"13800138000","code":"12ab"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(phoneauth.KindInvalidInput), decodeError(t, rec).Kind)
	})
}

func TestOneClick(t *testing.T) {
	t.Run("resolves phone and logs in", func(t *testing.T) {
		api := newTestAPI(t)
		api.resolver.On("ResolvePhone", mock.Anything, "carrier-token", "open-1").Return("13912345678", nil)

		rec := api.do(t, http.MethodPost, "/api/auth/one-click", `{"accessToken":"carrier-token","carrierOpaqueId":"open-1"}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsNewUser)
		assert.Equal(t, "13912345678", resp.Profile.Phone)
		api.resolver.AssertExpectations(t)
	})

	t.Run("missing access token", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(t, http.MethodPost, "/api/auth/one-click", `{}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(phoneauth.KindInvalidInput), decodeError(t, rec).Kind)
		api.resolver.AssertNotCalled(t, "ResolvePhone", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("carrier rejection", func(t *testing.T) {
		api := newTestAPI(t)
		api.resolver.On("ResolvePhone", mock.Anything, "bad", "").
			Return("", &carrier.ProviderError{Code: 1001, Message: "token expired"})

		rec := api.do(t, http.MethodPost, "/api/auth/one-click", `{"accessToken":"bad"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(phoneauth.KindCarrierVerificationFailed), resp.Kind)
		assert.Equal(t, "token expired", resp.Message)
	})
}

func TestCheckTokenAndLogout(t *testing.T) {
	api := newTestAPI(t)
	login := api.login(t, "13800138000")

	t.Run("check-token describes the user", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/auth/check-token", "", login.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp CheckTokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, login.UserID, resp.UserID)
		assert.Equal(t, "13800138000", resp.Phone)
		assert.NotZero(t, resp.CreatedAt)
		require.NotNil(t, resp.LastLoginAt)
	})

	t.Run("missing bearer token", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/auth/check-token", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, KindUnauthorized, decodeError(t, rec).Kind)
	})

	t.Run("garbage bearer token", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/auth/check-token", "", "not-a-jwt")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, KindUnauthorized, decodeError(t, rec).Kind)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/logout", "", login.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = api.do(t, http.MethodGet, "/api/auth/check-token", "", login.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "JWT token has been revoked", decodeError(t, rec).Message)
	})
}

func TestLogout_RevocationDisabled(t *testing.T) {
	api := newTestAPI(t, withoutRevocation())
	login := api.login(t, "13800138000")

	t.Run("route is not served", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/logout", "", login.Token)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, KindNotFound, decodeError(t, rec).Kind)
	})

	t.Run("handler refuses to report success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := api.e.NewContext(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), rec)
		c.Set(jwtmiddleware.ClaimsKey, &jwt.Claims{UserID: login.UserID})

		require.NoError(t, api.auth.Logout(c))

		assert.Equal(t, http.StatusNotImplemented, rec.Code)
		assert.Equal(t, string(phoneauth.KindInternalError), decodeError(t, rec).Kind)
	})

	t.Run("token stays usable and is not documented", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/auth/check-token", "", login.Token)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = api.do(t, http.MethodGet, "/openapi.json", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/api/auth/logout")
	})
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/auth/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, decodeError(t, rec).Kind)
}

func TestOpenAPIDocument(t *testing.T) {
	api := newTestAPI(t)

	t.Run("json", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/openapi.json", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		paths, ok := doc["paths"].(map[string]any)
		require.True(t, ok)
		for _, p := range []string{"/api/auth/sms/send", "/api/auth/sms/verify", "/api/auth/one-click", "/api/auth/check-token", "/api/auth/logout"} {
			assert.Contains(t, paths, p)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/openapi.yaml", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/api/auth/sms/send")
	})
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind   phoneauth.Kind
		status int
	}{
		{phoneauth.KindInvalidPhoneFormat, http.StatusBadRequest},
		{phoneauth.KindInvalidInput, http.StatusBadRequest},
		{phoneauth.KindRateLimited, http.StatusTooManyRequests},
		{phoneauth.KindDispatchFailed, http.StatusBadGateway},
		{phoneauth.KindCodeInvalid, http.StatusUnauthorized},
		{phoneauth.KindCodeExpired, http.StatusUnauthorized},
		{phoneauth.KindCarrierVerificationFailed, http.StatusUnauthorized},
		{phoneauth.KindTokenIssuanceFailed, http.StatusInternalServerError},
		{phoneauth.KindInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusForKind(tt.kind))
		})
	}
}

func TestFlowError_HidesRawErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, flowError(c, errors.New("pq: connection refused")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(phoneauth.KindInternalError), resp.Kind)
	assert.NotContains(t, resp.Message, "pq")
}
