package inbound

import (
	"strconv"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/auth/usecase"
	"github.com/shandysiswandi/otpauth/internal/pkg/router"
)

// HTTPEndpoint exposes the phone number login flow over HTTP.
type HTTPEndpoint struct {
	uc uc
}

// RequestOTP sends a login code to a registered phone number.
// @Summary Request login code
// @Description Issues a 6 digit code valid for 5 minutes and sends it by SMS. Any previous code of the user stops working.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RequestOTPRequest true "Request OTP payload"
// @Success 200 {object} router.successResponse{data=RequestOTPResponse} "OTP sent successfully"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 403 {object} router.errorResponse "Your account has been suspended"
// @Failure 404 {object} router.errorResponse "User not found with this phone number"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many OTP requests, please try again later"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/request-otp [post]
func (h *HTTPEndpoint) RequestOTP(r *router.Request) (any, error) {
	var req RequestOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RequestOTP(r.Context(), usecase.RequestOTPInput{
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return RequestOTPResponse{SMSSent: resp.SMSSent}, nil
}

// VerifyOTP exchanges a login code for a bearer token.
// @Summary Verify login code
// @Description Consumes the active code of the user and returns a bearer token. A code works once.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify OTP payload"
// @Success 200 {object} router.successResponse{data=VerifyOTPResponse} "Login successful"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid or expired OTP"
// @Failure 403 {object} router.errorResponse "Your account has been suspended"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/verify-otp [post]
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyOTP(r.Context(), usecase.VerifyOTPInput{
		PhoneNumber: req.PhoneNumber,
		OTP:         req.OTP,
	})
	if err != nil {
		return nil, err
	}

	return VerifyOTPResponse{
		Token:     resp.Token,
		TokenType: resp.TokenType,
		ExpiresAt: resp.ExpiresAt,
		User:      toUserResponse(resp.User),
	}, nil
}

// Logout revokes the bearer token of the request.
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse "Logged out successfully"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/logout [post]
func (h *HTTPEndpoint) Logout(r *router.Request) (any, error) {
	if err := h.uc.Logout(r.Context()); err != nil {
		return nil, err
	}

	return LogoutResponse{}, nil
}

// Me returns the authenticated user.
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=MeResponse} "Current user"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 404 {object} router.errorResponse "User not found"
// @Router /api/v1/me [get]
func (h *HTTPEndpoint) Me(r *router.Request) (any, error) {
	user, err := h.uc.Me(r.Context())
	if err != nil {
		return nil, err
	}

	return MeResponse{User: toUserResponse(*user)}, nil
}

func toUserResponse(u entity.User) UserResponse {
	return UserResponse{
		ID:          strconv.FormatInt(u.ID, 10),
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
		Status:      u.Status.String(),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
