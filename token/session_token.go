package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
)

// SessionCookiePurpose is the HKDF info string for the session cookie key.
const SessionCookiePurpose = "discord-oauth session cookie"

// SessionTokens issues and parses the signed value of the session cookie. The token's
// subject is the session ID.
type SessionTokens struct {
	signer  Signer
	issuer  string
	ttl     time.Duration
	nowTime func() time.Time
}

// SessionTokensOption defines a function type to modify SessionTokens.
type SessionTokensOption func(*SessionTokens)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionTokensOption {
	return func(s *SessionTokens) {
		s.nowTime = nowFunc
	}
}

func NewSessionTokens(signer Signer, issuer string, ttl time.Duration, options ...SessionTokensOption) *SessionTokens {
	s := &SessionTokens{
		signer:  signer,
		issuer:  issuer,
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// TTL is the lifetime of issued tokens.
func (s *SessionTokens) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for sessionID.
func (s *SessionTokens) Issue(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.Wrap(apperrors.ErrInvalidArgument, "session ID is required")
	}
	now := s.nowTime()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.New().String(),
	}
	return s.signer.Sign(claims)
}

// Parse verifies raw and returns the session ID it carries.
func (s *SessionTokens) Parse(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{s.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return "", errors.Wrap(apperrors.ErrInvalidSessionToken, err.Error())
	}
	if claims.Subject == "" {
		return "", errors.Wrap(apperrors.ErrInvalidSessionToken, "missing subject")
	}
	return claims.Subject, nil
}
