package router

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

	"github.com/shandysiswandi/otpauth/internal/pkg/config"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/jwt"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

type revokedSet struct {
	ids map[string]bool
	err error
}

func (r revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r.ids[jti], r.err
}

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

type greeting struct {
	Name string `json:"name"`
}

func (greeting) Message() string { return "Hello" }

func newTestJWT(t *testing.T) jwt.JWT {
	t.Helper()

	j, err := jwt.NewHS512(jwt.Config{
		Secret: []byte(strings.Repeat("k", 64)),
		Issuer: "otpauth",
		TTL:    time.Hour,
		UUID:   uid.NewUUID(),
	})
	require.NoError(t, err)
	return j
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestRouter_Envelopes(t *testing.T) {
	j := newTestJWT(t)
	r := NewRouter(Config{JWT: j, UUID: uid.NewUUID(), Instrument: instrument.NewNoop()})

	r.POST("/api/v1/auth/request-otp", func(req *Request) (any, error) {
		var in greeting
		if err := req.DecodeBody(&in); err != nil {
			return nil, err
		}
		switch in.Name {
		case "missing":
			return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
		case "invalid":
			return nil, goerror.NewInvalidInput(validator.V10ValidationError{"phone_number": "bad"})
		case "boom":
			return nil, errors.New("db down")
		case "panic":
			panic("handler exploded")
		}
		return greeting{Name: in.Name}, nil
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
		wantField  string
	}{
		{name: "success", body: `{"name":"ann"}`, wantStatus: http.StatusOK, wantMsg: "Hello"},
		{name: "business error", body: `{"name":"missing"}`, wantStatus: http.StatusNotFound, wantMsg: "User not found"},
		{name: "validation error", body: `{"name":"invalid"}`, wantStatus: http.StatusUnprocessableEntity, wantMsg: "Validation error", wantField: "phone_number"},
		{name: "unknown error", body: `{"name":"boom"}`, wantStatus: http.StatusInternalServerError, wantMsg: "Internal server error"},
		{name: "panic", body: `{"name":"panic"}`, wantStatus: http.StatusInternalServerError, wantMsg: "Internal server error"},
		{name: "malformed json", body: `{"name":`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{name: "unknown field", body: `{"nickname":"x"}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{name: "trailing data", body: `{"name":"a"}{}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, r, http.MethodPost, "/api/v1/auth/request-otp", tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
			if tt.wantField != "" {
				assert.Contains(t, env.Error, tt.wantField)
			}
			assert.NotEmpty(t, rec.Header().Get(instrument.HeaderCorrelationID))
		})
	}
}

func TestRouter_CorrelationIDEchoed(t *testing.T) {
	r := NewRouter(Config{JWT: newTestJWT(t), UUID: uid.NewUUID()})

	rec, _ := do(t, r, http.MethodGet, "/health", "", map[string]string{instrument.HeaderCorrelationID: "cid-123"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cid-123", rec.Header().Get(instrument.HeaderCorrelationID))
}

func TestRouter_RootAndHealth(t *testing.T) {
	r := NewRouter(Config{JWT: newTestJWT(t), UUID: uid.NewUUID()})

	tests := []struct {
		path    string
		wantMsg string
	}{
		{path: "/", wantMsg: "Welcome to the OTP authentication API"},
		{path: "/health", wantMsg: "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, env := do(t, r, http.MethodGet, tt.path, "", nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
			assert.Empty(t, env.Data)
			assert.NotEmpty(t, rec.Header().Get(instrument.HeaderCorrelationID))
		})
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := NewRouter(Config{JWT: newTestJWT(t)})
	r.GET("/api/v1/me", func(*Request) (any, error) { return greeting{}, nil })

	rec, env := do(t, r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", env.Message)

	rec, env = do(t, r, http.MethodDelete, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", env.Message)
}

func TestRouter_Authentication(t *testing.T) {
	j := newTestJWT(t)
	issued, err := j.Generate(7, "+15551234567")
	require.NoError(t, err)
	revokedToken, err := j.Generate(8, "+15551234568")
	require.NoError(t, err)

	r := NewRouter(Config{
		JWT:        j,
		Revocation: revokedSet{ids: map[string]bool{revokedToken.ID: true}},
	})
	r.GET("/api/v1/me", func(req *Request) (any, error) {
		clm := jwt.GetAuth(req.Context())
		return greeting{Name: clm.Phone}, nil
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "no header", wantStatus: http.StatusUnauthorized, wantMsg: "Authentication required"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantMsg: "Authentication required"},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "revoked token", header: "Bearer " + revokedToken.Token, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "valid token", header: "Bearer " + issued.Token, wantStatus: http.StatusOK, wantMsg: "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec, env := do(t, r, http.MethodGet, "/api/v1/me", "", headers)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestRouter_RevocationBackendFailure(t *testing.T) {
	j := newTestJWT(t)
	issued, err := j.Generate(7, "+15551234567")
	require.NoError(t, err)

	r := NewRouter(Config{JWT: j, Revocation: revokedSet{err: errors.New("redis down")}})
	r.GET("/api/v1/me", func(*Request) (any, error) { return greeting{}, nil })

	rec, _ := do(t, r, http.MethodGet, "/api/v1/me", "", map[string]string{"Authorization": "Bearer " + issued.Token})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_Throttle(t *testing.T) {
	limiter := &countingLimiter{}
	// httptest requests arrive from 192.0.2.1.
	r := NewRouter(Config{JWT: newTestJWT(t), Limiter: limiter, TrustedProxies: []string{"192.0.2.0/24"}})
	r.POST("/api/v1/auth/request-otp", func(*Request) (any, error) {
		return greeting{}, nil
	}, r.Throttle("otp", ratelimit.Rule{Limit: 2, Window: time.Minute}))

	header := map[string]string{"X-Real-IP": "203.0.113.9"}
	for range 2 {
		rec, _ := do(t, r, http.MethodPost, "/api/v1/auth/request-otp", `{}`, header)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := do(t, r, http.MethodPost, "/api/v1/auth/request-otp", `{}`, header)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, env.Message)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/auth/request-otp", `{}`, map[string]string{"X-Real-IP": "203.0.113.10"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, limiter.hits["ip:otp:203.0.113.9"])
}

func TestRouter_ThrottleIgnoresSpoofedHeaders(t *testing.T) {
	limiter := &countingLimiter{}
	r := NewRouter(Config{JWT: newTestJWT(t), Limiter: limiter})
	r.POST("/api/v1/auth/request-otp", func(*Request) (any, error) {
		return greeting{}, nil
	}, r.Throttle("otp", ratelimit.Rule{Limit: 2, Window: time.Minute}))

	spoofed := []map[string]string{
		{"X-Forwarded-For": "198.51.100.1"},
		{"X-Real-IP": "198.51.100.2"},
		{"True-Client-IP": "198.51.100.3"},
		{"X-Forwarded-For": "198.51.100.4, 198.51.100.5"},
	}

	var accepted int
	for _, header := range spoofed {
		rec, _ := do(t, r, http.MethodPost, "/api/v1/auth/request-otp", `{}`, header)
		if rec.Code == http.StatusOK {
			accepted++
		}
	}

	assert.Equal(t, 2, accepted)
	assert.Equal(t, map[string]int{"ip:otp:192.0.2.1": len(spoofed)}, limiter.hits)
}

func TestRouter_Maintenance(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: [\"/api/v1/me\"]\n"))
	require.NoError(t, err)

	r := NewRouter(Config{Config: cfg, JWT: newTestJWT(t)})
	r.GET("/api/v1/me", func(*Request) (any, error) { return greeting{}, nil })

	rec, env := do(t, r, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Service is under maintenance", env.Message)
}

func TestRealIP(t *testing.T) {
	trusted := parseTrustedProxies([]string{"9.9.9.9", "10.0.0.0/8", "bogus"})

	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "true client ip", header: map[string]string{"True-Client-IP": "1.1.1.1"}, remote: "9.9.9.9:1", want: "1.1.1.1"},
		{name: "x real ip", header: map[string]string{"X-Real-IP": "2.2.2.2"}, remote: "9.9.9.9:1", want: "2.2.2.2"},
		{name: "forwarded for skips trusted hops", header: map[string]string{"X-Forwarded-For": "6.6.6.6, 3.3.3.3, 10.0.0.1"}, remote: "9.9.9.9:1", want: "3.3.3.3"},
		{name: "forwarded for all trusted", header: map[string]string{"X-Forwarded-For": "10.0.0.2"}, remote: "10.1.1.1:1", want: "10.1.1.1"},
		{name: "forwarded for garbage hop", header: map[string]string{"X-Forwarded-For": "junk"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "garbage header", header: map[string]string{"X-Real-IP": "not-an-ip"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "untrusted peer ignores headers", header: map[string]string{"X-Real-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, remote: "5.5.5.5:1", want: "5.5.5.5"},
		{name: "ipv6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "bare remote", remote: "4.4.4.4", want: "4.4.4.4"},
		{name: "nothing usable", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, realIP(req, trusted))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got := parseTrustedProxies([]string{" 127.0.0.1 ", "10.1.2.3/8", "::1", "", "nope"})

	require.Len(t, got, 3)
	assert.Equal(t, "127.0.0.1/32", got[0].String())
	assert.Equal(t, "10.0.0.0/8", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), nil, mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
