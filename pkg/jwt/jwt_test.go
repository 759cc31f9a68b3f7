package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret-key-which-is-long-enough", "rentflow", time.Hour)

	token, err := m.GenerateToken("user_2abc", "t@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.ExternalID())
	assert.Equal(t, "t@example.com", claims.Email)
	assert.Equal(t, "rentflow", claims.Issuer)
}

func TestVerify_WrongSecret(t *testing.T) {
	a := NewJWTManager("secret-a-secret-a-secret-a-secret", "rentflow", time.Hour)
	b := NewJWTManager("secret-b-secret-b-secret-b-secret", "rentflow", time.Hour)

	token, err := a.GenerateToken("user_1", "")
	require.NoError(t, err)
	_, err = b.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	m := NewJWTManager("secret-secret-secret-secret-secret", "rentflow", -time.Minute)
	token, err := m.GenerateToken("user_1", "")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}

func TestGenerate_RequiresSubject(t *testing.T) {
	m := NewJWTManager("secret", "rentflow", time.Hour)
	_, err := m.GenerateToken("", "")
	assert.Error(t, err)
}
