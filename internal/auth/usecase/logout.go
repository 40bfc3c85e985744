package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/jwt"
)

// Logout revokes only the credential of the current request. Revoking an
// already revoked credential succeeds.
func (s *Usecase) Logout(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Logout")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	if err := s.session.Revoke(ctx, clm.ID, clm.Expiry()); err != nil {
		slog.ErrorContext(ctx, "failed to revoke token", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "user logged out", "user_id", clm.UserID)

	return nil
}
