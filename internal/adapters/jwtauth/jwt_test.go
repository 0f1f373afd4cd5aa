package jwtauth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midtown_book/internal/adapters/jwtauth"
	"midtown_book/internal/domain"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := jwtauth.NewVerifier("s3cret", "authenticated")
	p := domain.Principal{UserID: uuid.NewString(), Email: "a@example.com", Name: "Ana", Role: domain.RoleAdmin}

	tok, err := v.Issue(p, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, got.UserID)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, domain.UserActive, got.Status)
	assert.True(t, got.CanWrite())
}

func TestVerify_Rejects(t *testing.T) {
	v := jwtauth.NewVerifier("s3cret", "authenticated")
	id := uuid.NewString()

	expired, err := v.Issue(domain.Principal{UserID: id}, -time.Hour)
	require.NoError(t, err)

	wrongKey, err := jwtauth.NewVerifier("other", "authenticated").Issue(domain.Principal{UserID: id}, time.Minute)
	require.NoError(t, err)

	wrongAud, err := jwtauth.NewVerifier("s3cret", "anon").Issue(domain.Principal{UserID: id}, time.Minute)
	require.NoError(t, err)

	notUUID, err := v.Issue(domain.Principal{UserID: "42"}, time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": id, "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired": expired, "wrong key": wrongKey, "wrong audience": wrongAud,
		"subject": notUUID, "alg none": none, "garbage": "abc.def.ghi",
	} {
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, name)
	}
}

func TestVerify_BannedUserCannotWrite(t *testing.T) {
	v := jwtauth.NewVerifier("s3cret", "")
	tok, err := v.Issue(domain.Principal{UserID: uuid.NewString(), Status: domain.UserBanned}, time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.False(t, p.CanWrite())
}

func TestBearerToken(t *testing.T) {
	tok, ok := jwtauth.BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "Bearer", "Bearer   ", "Basic abc", "abc"} {
		_, ok := jwtauth.BearerToken(h)
		assert.False(t, ok, h)
	}
}
