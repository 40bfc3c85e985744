package inbound

import (
	"context"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/auth/usecase"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/router"
)

type uc interface {
	RequestOTP(ctx context.Context, in usecase.RequestOTPInput) (*usecase.RequestOTPOutput, error)
	VerifyOTP(ctx context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*entity.User, error)
}

// Throttles are the per client IP limits of the public auth routes. A zero
// rule disables that throttle.
type Throttles struct {
	RequestOTP ratelimit.Rule
	// VerifyOTP bounds how fast one address can guess codes.
	VerifyOTP ratelimit.Rule
}

// RegisterHTTPEndpoint mounts the auth routes.
func RegisterHTTPEndpoint(r *router.Router, uc uc, throttles Throttles) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/auth/request-otp", end.RequestOTP, r.Throttle("request-otp", throttles.RequestOTP))
	r.POST("/api/v1/auth/verify-otp", end.VerifyOTP, r.Throttle("verify-otp", throttles.VerifyOTP))
	r.POST("/api/v1/auth/logout", end.Logout) // need authenticated

	r.GET("/api/v1/me", end.Me) // need authenticated
}
