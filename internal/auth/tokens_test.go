package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodecRejectsSharedSecret(t *testing.T) {
	_, err := NewTokenCodec("same", "same", time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenCodec("", "other", time.Minute, time.Hour)
	require.Error(t, err)
}

func TestIssueAndParseAccess(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("acc-1", RoleAdmin, "a@h.com", TokenAccess)
	require.NoError(t, err)

	claims, err := codec.Parse(token, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "a@h.com", claims.Email)
	assert.Equal(t, TokenAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokenCarriesNoProfile(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("acc-1", RoleAdmin, "a@h.com", TokenRefresh)
	require.NoError(t, err)

	claims, err := codec.Parse(token, TokenRefresh)
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Role)
}

func TestTokensIssuedTogetherAreDistinct(t *testing.T) {
	codec := newTestCodec(t)
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec.WithClock(func() time.Time { return frozen })

	a, err := codec.Issue("acc-1", RoleUser, "a@h.com", TokenRefresh)
	require.NoError(t, err)
	b, err := codec.Issue("acc-1", RoleUser, "a@h.com", TokenRefresh)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParseRejectsCrossClassTokens(t *testing.T) {
	codec := newTestCodec(t)

	pair, err := codec.IssuePair(Account{ID: "acc-1", Role: RoleUser, Email: "a@h.com"})
	require.NoError(t, err)

	_, err = codec.Parse(pair.RefreshToken, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidTokenType)

	_, err = codec.Parse(pair.AccessToken, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestParseTypeClaimMismatchWithSameKey(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		Type: TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = codec.Parse(forged, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestParseExpired(t *testing.T) {
	codec := newTestCodec(t)
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec.WithClock(func() time.Time { return issuedAt })

	token, err := codec.Issue("acc-1", RoleUser, "a@h.com", TokenAccess)
	require.NoError(t, err)

	codec.WithClock(func() time.Time { return issuedAt.Add(16 * time.Minute) })
	_, err = codec.Parse(token, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsGarbageAndForeignSignature(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Parse("not-a-jwt", TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type: TokenAccess,
		Role: RoleSystemAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	_, err = codec.Parse(foreign, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Type: TokenAccess,
		Role: RoleSystemAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Parse(unsigned, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRequiresExpiry(t *testing.T) {
	codec := newTestCodec(t)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type:             TokenAccess,
		Role:             RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1"},
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = codec.Parse(noExp, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
