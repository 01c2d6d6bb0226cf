package auth_test

import (
	"testing"
	"time"

	"deepvision-backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	signer := auth.NewSigner("test-secret", time.Hour)

	token, err := signer.Issue(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserId)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := auth.NewSigner("test-secret", time.Hour)

	_, err := signer.Verify("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = signer.Verify("")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := auth.NewSigner("secret-a", time.Hour).Issue(1, "alice")
	require.NoError(t, err)

	_, err = auth.NewSigner("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer := auth.NewSigner("test-secret", -time.Minute)

	token, err := signer.Issue(1, "alice")
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestDefaultTTL(t *testing.T) {
	// A zero ttl falls back to the seven day default rather than issuing
	// tokens that expire immediately.
	signer := auth.NewSigner("test-secret", 0)

	token, err := signer.Issue(7, "bob")
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserId)
}
