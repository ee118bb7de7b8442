package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "ACCESS"
	TokenRefresh TokenType = "REFRESH"
)

// Claims is the payload of both token classes. Email and Role are only set
// on access tokens.
type Claims struct {
	Type  TokenType `json:"type"`
	Email string    `json:"email,omitempty"`
	Role  Role      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access and refresh tokens. Each class has
// its own HMAC key.
type TokenCodec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	return &TokenCodec{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the time source used for issuing and verifying.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

func (c *TokenCodec) Issue(subjectID string, role Role, email string, typ TokenType) (string, error) {
	key, ttl, err := c.params(typ)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ == TokenAccess {
		claims.Email = email
		claims.Role = role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", strings.ToLower(string(typ)), err)
	}
	return signed, nil
}

// IssuePair creates a fresh access/refresh pair for account.
func (c *TokenCodec) IssuePair(account Account) (Tokens, error) {
	access, err := c.Issue(account.ID, account.Role, account.Email, TokenAccess)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := c.Issue(account.ID, account.Role, account.Email, TokenRefresh)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse verifies signature, expiry and type. A token signed with the other
// class's key yields ErrInvalidTokenType rather than ErrInvalidToken.
func (c *TokenCodec) Parse(token string, expected TokenType) (*Claims, error) {
	key, _, err := c.params(expected)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, staticKey(key), c.parserOptions()...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid) && c.signedByOther(token, expected):
			return nil, ErrInvalidTokenType
		default:
			return nil, ErrInvalidToken
		}
	}

	if claims.Type != expected {
		return nil, ErrInvalidTokenType
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if expected == TokenAccess && !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *TokenCodec) signedByOther(token string, expected TokenType) bool {
	other := c.refreshKey
	if expected == TokenRefresh {
		other = c.accessKey
	}
	opts := append(c.parserOptions(), jwt.WithoutClaimsValidation())
	_, err := jwt.ParseWithClaims(token, &Claims{}, staticKey(other), opts...)
	return err == nil
}

func (c *TokenCodec) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
}

func (c *TokenCodec) params(typ TokenType) ([]byte, time.Duration, error) {
	switch typ {
	case TokenAccess:
		return c.accessKey, c.accessTTL, nil
	case TokenRefresh:
		return c.refreshKey, c.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token type %q", typ)
	}
}

func staticKey(key []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return key, nil
	}
}
