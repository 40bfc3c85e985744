package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
)

const defaultSMSTemplate = "Your login code is {code}. It expires in {minutes} minutes."

type RequestOTPInput struct {
	PhoneNumber string `validate:"required,phone"`
}

type RequestOTPOutput struct {
	SMSSent bool
}

// RequestOTP issues a fresh login code for the phone number and hands it to
// the SMS channel. Delivery failure is reported through SMSSent and never
// undoes the issued code.
func (s *Usecase) RequestOTP(ctx context.Context, in RequestOTPInput) (*RequestOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestOTP")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if err := s.throttlePhone(ctx, in.PhoneNumber); err != nil {
		return nil, err
	}

	user, err := s.lookupUser(ctx, in.PhoneNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp requested for unknown phone number")
		return nil, goerror.NewBusiness("User not found with this phone number", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !user.CanLogin() {
		slog.WarnContext(ctx, "otp requested for account that cannot log in", "user_id", user.ID, "status", user.Status.String())
		return nil, goerror.NewBusiness(msgSuspended, goerror.CodeForbidden)
	}

	code, expiresAt, err := s.lifecycle.RequestCode(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue otp code", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	sent := true
	if err := s.dispatcher.DispatchOTP(ctx, entity.OTPDispatch{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Text:        s.renderSMS(code),
		ExpiresAt:   expiresAt,
	}); err != nil {
		slog.WarnContext(ctx, "failed to dispatch otp sms", "user_id", user.ID, "error", err)
		sent = false
	}

	return &RequestOTPOutput{SMSSent: sent}, nil
}

// throttlePhone counts requests per phone number. The phone is stored only
// as an HMAC so Redis keys do not expose it. Limiter failures fail open.
func (s *Usecase) throttlePhone(ctx context.Context, phone string) error {
	rule := ratelimit.Rule{
		Limit:  s.cfg.GetInt("modules.auth.rate_limit.phone_limit"),
		Window: s.cfg.GetSecond("modules.auth.rate_limit.phone_window_seconds"),
	}
	if !rule.Enabled() {
		return nil
	}

	ok, err := s.limiter.Allow(ctx, "phone:"+s.hmac.Key(phone), rule)
	if err != nil {
		slog.WarnContext(ctx, "phone rate limiter unavailable", "error", err)
	}
	if !ok {
		slog.WarnContext(ctx, "otp request throttled by phone number")
		return goerror.NewBusiness("Too many OTP requests, please try again later", goerror.CodeTooManyRequest)
	}

	return nil
}

func (s *Usecase) lookupUser(ctx context.Context, phone string) (*entity.User, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repoDB.GetUserByPhone(ctx, phone)
}

func (s *Usecase) renderSMS(code string) string {
	tpl := s.cfg.GetString("modules.auth.sms.template")
	if tpl == "" {
		tpl = defaultSMSTemplate
	}

	return strings.NewReplacer(
		"{code}", code,
		"{minutes}", strconv.Itoa(int(entity.OTPTTL.Minutes())),
	).Replace(tpl)
}
