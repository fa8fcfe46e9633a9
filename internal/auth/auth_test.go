package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *Keys {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})

	keys, err := NewKeys(privatePEM, publicPEM)
	require.NoError(t, err)
	return keys
}

func TestTokenRoundTrip(t *testing.T) {
	keys := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleUser},
	}

	token, err := keys.GenerateToken(claims)
	require.NoError(t, err)

	parsed, err := keys.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", parsed.Subject)
	assert.True(t, parsed.HasRole(RoleUser))
	assert.False(t, parsed.HasRole(RoleAdmin))
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	keys := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Roles: []string{RoleUser},
	}
	token, err := keys.GenerateToken(claims)
	require.NoError(t, err)

	_, err = keys.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	keys := testKeys(t)
	_, err := keys.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestVerifyOnlyKeysCannotSign(t *testing.T) {
	keys := testKeys(t)
	token, err := keys.GenerateToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	// rebuild a verify-only keyset from just the public half
	publicDER, err := x509.MarshalPKIXPublicKey(keys.publicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	verifyKeys, err := NewVerifyKeys(publicPEM)
	require.NoError(t, err)

	_, err = verifyKeys.ValidateToken(token)
	assert.NoError(t, err)

	_, err = verifyKeys.GenerateToken(Claims{})
	assert.Error(t, err)
}
