package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
)

type VerifyOTPInput struct {
	PhoneNumber string `validate:"required,phone"`
	OTP         string `validate:"required,otp"`
}

type VerifyOTPOutput struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	User      entity.User
}

// VerifyOTP exchanges a valid code for a bearer token.
//
// Unknown phone numbers, wrong codes, expired codes and reused codes all
// produce the same 401. Suspended accounts do too unless
// modules.auth.verify_reveals_suspended is set, which answers 403 instead.
func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	authFailed := goerror.NewBusiness(msgAuthFailed, goerror.CodeUnauthorized)

	user, err := s.lookupUser(ctx, in.PhoneNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp verify for unknown phone number")
		return nil, authFailed
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !user.CanLogin() {
		slog.WarnContext(ctx, "otp verify for account that cannot log in", "user_id", user.ID, "status", user.Status.String())
		if s.cfg.GetBool("modules.auth.verify_reveals_suspended") {
			return nil, goerror.NewBusiness(msgSuspended, goerror.CodeForbidden)
		}
		return nil, authFailed
	}

	code, err := s.lifecycle.VerifyCode(ctx, user.ID, in.OTP)
	if errors.Is(err, entity.ErrNoActiveCode) || errors.Is(err, entity.ErrCodeMismatch) {
		slog.WarnContext(ctx, "otp verify failed", "user_id", user.ID, "reason", err.Error())
		return nil, authFailed
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify otp code", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	token, err := s.session.Issue(ctx, *user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue token", "user_id", user.ID, "otp_id", code.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "otp_id", code.ID)

	return &VerifyOTPOutput{
		Token:     token.Value,
		TokenType: "Bearer",
		ExpiresAt: token.ExpiresAt,
		User:      *user,
	}, nil
}
