package jwt

import (
	"errors"
	"strconv"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
	"github.com/shandysiswandi/otpauth/internal/pkg/clock"
)

// minHS512Secret is the HS512 block size in bytes.
const minHS512Secret = 64

// ErrMissingIDGenerator is returned by NewHS512 without a token id source.
var ErrMissingIDGenerator = errors.New("jwt: token id generator is required")

// Symmetric signs and verifies HS512 tokens with one shared secret.
type Symmetric struct {
	secret    []byte
	issuer    string
	audiences []string
	ttl       time.Duration
	clock     clocker
	uuid      generator
	parser    *libJWT.Parser
}

// NewHS512 validates cfg and builds the signer. A nil Clock means wall time.
func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minHS512Secret {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.UUID == nil {
		return nil, ErrMissingIDGenerator
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Symmetric{
		secret:    cfg.Secret,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		ttl:       cfg.TTL,
		clock:     cfg.Clock,
		uuid:      cfg.UUID,
		parser: libJWT.NewParser(
			libJWT.WithIssuer(cfg.Issuer),
			libJWT.WithAudience(cfg.Audiences...),
			libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
			libJWT.WithIssuedAt(),
			libJWT.WithExpirationRequired(),
			libJWT.WithTimeFunc(cfg.Clock.Now),
		),
	}, nil
}

// Generate signs a token for the user with a fresh jti.
func (s *Symmetric) Generate(uid int64, phone string) (Issued, error) {
	// NumericDate has second precision; truncating keeps Issued equal to
	// what Verify will read back.
	now := s.clock.Now().Truncate(time.Second)
	exp := now.Add(s.ttl)
	jti := s.uuid.Generate()

	claims := Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(uid, 10),
			Issuer:    s.issuer,
			Audience:  s.audiences,
			IssuedAt:  libJWT.NewNumericDate(now),
			NotBefore: libJWT.NewNumericDate(now),
			ExpiresAt: libJWT.NewNumericDate(exp),
		},
		UserID: uid,
		Phone:  phone,
	}

	token, err := libJWT.NewWithClaims(libJWT.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return Issued{}, err
	}

	return Issued{Token: token, ID: jti, ExpiresAt: exp}, nil
}

// Verify checks signature, issuer, audience and time claims. The subject
// must agree with user_id and a jti must be present for revocation.
func (s *Symmetric) Verify(tokenStr string) (Claims, error) {
	var claims Claims

	token, err := s.parser.ParseWithClaims(tokenStr, &claims, func(*libJWT.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, libJWT.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil && token != nil && token.Method != nil && token.Method.Alg() != libJWT.SigningMethodHS512.Alg():
		return Claims{}, ErrInvalidSigningMethod
	case err != nil:
		return Claims{}, err
	}

	if !token.Valid || claims.ID == "" || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
