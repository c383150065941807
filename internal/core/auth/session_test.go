package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhonta/esave/internal/core/auth"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims auth.Claims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, auth.Claims{
		UserID: userID.String(),
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	session, err := auth.ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, auth.RoleUser, session.Role)
}

func TestParseTokenAdminRole(t *testing.T) {
	token := signToken(t, auth.Claims{
		UserID: uuid.NewString(),
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	session, err := auth.ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, session.Role)
}

func TestParseTokenUnknownRoleDowngrades(t *testing.T) {
	token := signToken(t, auth.Claims{
		UserID: uuid.NewString(),
		Role:   "superuser",
	}, testSecret)

	session, err := auth.ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, session.Role)
}

func TestParseTokenRejections(t *testing.T) {
	userID := uuid.NewString()

	t.Run("empty token", func(t *testing.T) {
		_, err := auth.ParseToken("", testSecret)
		assert.ErrorIs(t, err, auth.ErrEmptyToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := auth.ParseToken("not.a.jwt", testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, auth.Claims{UserID: userID}, []byte("other-secret"))
		_, err := auth.ParseToken(token, testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, auth.Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}, testSecret)
		_, err := auth.ParseToken(token, testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("missing userId claim", func(t *testing.T) {
		token := signToken(t, auth.Claims{Role: "user"}, testSecret)
		_, err := auth.ParseToken(token, testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("unsigned algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{UserID: userID}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = auth.ParseToken(token, testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestSessionRoundTrip(t *testing.T) {
	session := &auth.Session{UserID: uuid.New(), Role: auth.RoleAdmin}
	ctx := auth.WithSession(context.Background(), session)

	got, err := auth.SessionFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = auth.SessionFrom(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoSession)
}
