package session

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/jwt"
	"go.opentelemetry.io/otel/codes"
)

type revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// Session issues signed bearer tokens and revokes them through the denylist.
type Session struct {
	jwt      jwt.JWT
	denylist revoker
	ins      instrument.Instrumentation
}

func New(j jwt.JWT, denylist revoker, ins instrument.Instrumentation) *Session {
	return &Session{jwt: j, denylist: denylist, ins: ins}
}

func (s *Session) Issue(ctx context.Context, user entity.User) (*entity.Token, error) {
	_, span := s.ins.Tracer("auth.outbound.session").Start(ctx, "Issue")
	defer span.End()

	issued, err := s.jwt.Generate(user.ID, user.PhoneNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &entity.Token{Value: issued.Token, ID: issued.ID, ExpiresAt: issued.ExpiresAt}, nil
}

// Revoke denylists tokenID until expiresAt. Revoking twice is not an error.
func (s *Session) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, span := s.ins.Tracer("auth.outbound.session").Start(ctx, "Revoke")
	defer span.End()

	if err := s.denylist.Revoke(ctx, tokenID, expiresAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
