package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
)

const (
	issuer          = "umoja-trivia-api"
	accessAudience  = "umoja-trivia-app"
	refreshAudience = "umoja-trivia-refresh"
)

type TokenConfig struct {
	Secret           string        `mapstructure:"secret"`
	ExpiresIn        time.Duration `mapstructure:"expires_in"`
	RefreshExpiresIn time.Duration `mapstructure:"refresh_expires_in"`
}

// Claims identify the caller of an authenticated request.
type Claims struct {
	UserID      string      `json:"userId"`
	PhoneNumber string      `json:"phoneNumber"`
	Role        domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(c TokenConfig) *Tokens {
	return &Tokens{
		secret:     []byte(c.Secret),
		ttl:        c.ExpiresIn,
		refreshTTL: c.RefreshExpiresIn,
		now:        time.Now,
	}
}

func (t *Tokens) Issue(u *domain.User) (string, error) {
	return t.sign(u, accessAudience, t.ttl)
}

func (t *Tokens) IssueRefresh(u *domain.User) (string, error) {
	return t.sign(u, refreshAudience, t.refreshTTL)
}

func (t *Tokens) Verify(token string) (*Claims, error) {
	return t.parse(token, accessAudience)
}

func (t *Tokens) VerifyRefresh(token string) (*Claims, error) {
	return t.parse(token, refreshAudience)
}

func (t *Tokens) sign(u *domain.User, audience string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:      u.ID,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return s, nil
}

func (t *Tokens) parse(token, audience string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return nil, errors.New(errors.KindTokenExpired, errors.WithCause(err))
	}
	if err != nil {
		return nil, errors.New(errors.KindInvalidToken, errors.WithCause(err))
	}
	if claims.UserID == "" {
		return nil, errors.New(errors.KindInvalidToken)
	}

	return claims, nil
}
