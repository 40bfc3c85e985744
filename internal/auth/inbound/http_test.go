package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/auth/usecase"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/jwt"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/router"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeUsecase struct {
	requestIn  usecase.RequestOTPInput
	requestOut *usecase.RequestOTPOutput
	verifyIn   usecase.VerifyOTPInput
	verifyOut  *usecase.VerifyOTPOutput
	loggedOut  *jwt.Claims
	err        error
}

func (f *fakeUsecase) RequestOTP(_ context.Context, in usecase.RequestOTPInput) (*usecase.RequestOTPOutput, error) {
	f.requestIn = in
	return f.requestOut, f.err
}

func (f *fakeUsecase) VerifyOTP(_ context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error) {
	f.verifyIn = in
	return f.verifyOut, f.err
}

func (f *fakeUsecase) Logout(ctx context.Context) error {
	f.loggedOut = jwt.GetAuth(ctx)
	return f.err
}

func (f *fakeUsecase) Me(ctx context.Context) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	clm := jwt.GetAuth(ctx)
	return &entity.User{ID: clm.UserID, PhoneNumber: clm.Phone, Name: "Ada", Status: entity.UserStatusActive, CreatedAt: created, UpdatedAt: created}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, ratelimit.Rule) (bool, error) { return false, nil }

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *countingLimiter) Allow(_ context.Context, key string, rule ratelimit.Rule) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[key]++
	return c.hits[key] <= rule.Limit, nil
}

type envelope struct {
	Message string            `json:"message"`
	Data    map[string]any    `json:"data"`
	Error   map[string]string `json:"error"`
}

func newServer(t *testing.T, f *fakeUsecase, limiter ratelimit.Limiter, throttles Throttles) (http.Handler, jwt.JWT) {
	t.Helper()

	j, err := jwt.NewHS512(jwt.Config{
		Secret: []byte(strings.Repeat("x", 64)),
		Issuer: "otpauth",
		TTL:    time.Hour,
		UUID:   uid.NewUUID(),
	})
	require.NoError(t, err)

	r := router.NewRouter(router.Config{UUID: uid.NewUUID(), JWT: j, Limiter: limiter})
	RegisterHTTPEndpoint(r, f, throttles)
	return r, j
}

func call(t *testing.T, h http.Handler, method, path, body, token string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHTTP_RequestOTP(t *testing.T) {
	f := &fakeUsecase{requestOut: &usecase.RequestOTPOutput{SMSSent: true}}
	h, _ := newServer(t, f, nil, Throttles{})

	code, env := call(t, h, http.MethodPost, "/api/v1/auth/request-otp", `{"phone_number":"+15551234567"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP sent successfully", env.Message)
	assert.Equal(t, true, env.Data["sms_sent"])
	assert.Equal(t, "+15551234567", f.requestIn.PhoneNumber)

	f.requestOut = &usecase.RequestOTPOutput{SMSSent: false}
	_, env = call(t, h, http.MethodPost, "/api/v1/auth/request-otp", `{"phone_number":"+15551234567"}`, "")
	assert.Equal(t, false, env.Data["sms_sent"])
}

func TestHTTP_RequestOTP_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "MalformedBody", body: `{"phone_number":`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{name: "UnknownField", body: `{"phone":"+1555"}`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{
			name:     "NotFound",
			body:     `{"phone_number":"+15550000000"}`,
			err:      goerror.NewBusiness("User not found with this phone number", goerror.CodeNotFound),
			wantCode: http.StatusNotFound,
			wantMsg:  "User not found with this phone number",
		},
		{
			name:     "Suspended",
			body:     `{"phone_number":"+15550000000"}`,
			err:      goerror.NewBusiness("Your account has been suspended", goerror.CodeForbidden),
			wantCode: http.StatusForbidden,
			wantMsg:  "Your account has been suspended",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newServer(t, &fakeUsecase{err: tt.err}, nil, Throttles{})

			code, env := call(t, h, http.MethodPost, "/api/v1/auth/request-otp", tt.body, "")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestHTTP_RequestOTP_Throttled(t *testing.T) {
	f := &fakeUsecase{requestOut: &usecase.RequestOTPOutput{SMSSent: true}}
	h, _ := newServer(t, f, denyAll{}, Throttles{RequestOTP: ratelimit.Rule{Limit: 5, Window: time.Minute}})

	code, env := call(t, h, http.MethodPost, "/api/v1/auth/request-otp", `{"phone_number":"+15551234567"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests, please try again later", env.Message)
	assert.Empty(t, f.requestIn.PhoneNumber)

	code, _ = call(t, h, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone_number":"+15551234567","otp":"123456"}`, "")
	assert.NotEqual(t, http.StatusTooManyRequests, code, "verify-otp has no rule configured")
}

func TestHTTP_VerifyOTP_Throttled(t *testing.T) {
	f := &fakeUsecase{err: goerror.NewBusiness("Invalid or expired OTP", goerror.CodeUnauthorized)}
	limiter := &countingLimiter{}
	h, _ := newServer(t, f, limiter, Throttles{VerifyOTP: ratelimit.Rule{Limit: 3, Window: time.Minute}})

	for range 3 {
		code, _ := call(t, h, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone_number":"+15551234567","otp":"000000"}`, "")
		require.Equal(t, http.StatusUnauthorized, code)
	}

	f.verifyIn = usecase.VerifyOTPInput{}
	code, env := call(t, h, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone_number":"+15551234567","otp":"000001"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests, please try again later", env.Message)
	assert.Empty(t, f.verifyIn.OTP, "throttled guesses never reach the usecase")
	assert.Equal(t, 4, limiter.hits["ip:verify-otp:192.0.2.1"])
}

func TestHTTP_VerifyOTP(t *testing.T) {
	exp := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	f := &fakeUsecase{verifyOut: &usecase.VerifyOTPOutput{
		Token:     "tkn",
		TokenType: "Bearer",
		ExpiresAt: exp,
		User:      entity.User{ID: 1234567890123456789, PhoneNumber: "+15551234567", Name: "Ada", Status: entity.UserStatusActive, CreatedAt: created, UpdatedAt: created},
	}}
	h, _ := newServer(t, f, nil, Throttles{})

	code, env := call(t, h, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone_number":"+15551234567","otp":"042042"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login successful", env.Message)
	assert.Equal(t, "tkn", env.Data["token"])
	assert.Equal(t, "Bearer", env.Data["token_type"])
	assert.Equal(t, "2026-01-03T00:00:00Z", env.Data["expires_at"])
	assert.Equal(t, usecase.VerifyOTPInput{PhoneNumber: "+15551234567", OTP: "042042"}, f.verifyIn)

	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1234567890123456789", user["id"])
	assert.Equal(t, "active", user["status"])
	assert.Equal(t, "+15551234567", user["phone_number"])

	f.err = goerror.NewBusiness("Invalid or expired OTP", goerror.CodeUnauthorized)
	code, env = call(t, h, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone_number":"+15551234567","otp":"042042"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired OTP", env.Message)
}

func TestHTTP_ProtectedRoutes(t *testing.T) {
	f := &fakeUsecase{}
	h, j := newServer(t, f, nil, Throttles{})

	code, env := call(t, h, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authentication required", env.Message)

	code, _ = call(t, h, http.MethodPost, "/api/v1/auth/logout", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)

	issued, err := j.Generate(7, "+15557654321")
	require.NoError(t, err)

	code, env = call(t, h, http.MethodGet, "/api/v1/me", "", issued.Token)
	require.Equal(t, http.StatusOK, code)
	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7", user["id"])
	assert.Equal(t, "Ada", user["name"])

	code, env = call(t, h, http.MethodPost, "/api/v1/auth/logout", "", issued.Token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out successfully", env.Message)
	assert.Nil(t, env.Data)
	require.NotNil(t, f.loggedOut)
	assert.Equal(t, issued.ID, f.loggedOut.ID)
}
