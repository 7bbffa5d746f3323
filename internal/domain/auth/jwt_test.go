package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = strings.Repeat("k", 32)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: secret, Issuer: "autoinc", TokenTTL: time.Minute})

	token, expires, err := svc.IssueToken("ops", []string{RoleCounterAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	caller, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", caller.Subject)
	assert.Equal(t, []string{RoleCounterAdmin}, caller.Roles)
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: secret, Issuer: "autoinc", TokenTTL: time.Minute})
	token, _, err := svc.IssueToken("ops", nil)
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{Secret: strings.Repeat("x", 32), Issuer: "autoinc"})
	_, err = other.ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	foreign := NewJWTService(JWTConfig{Secret: secret, Issuer: "someone-else"})
	_, err = foreign.ValidateToken(token)
	assert.Error(t, err, "wrong issuer")

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "expired")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
