package auth

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("unit-test-secret")

	token, err := GenerateJWT("user-1", "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateJWTRejectsTampered(t *testing.T) {
	SetJWTSecret("unit-test-secret")

	token, err := GenerateJWT("user-1", "user@example.com")
	require.NoError(t, err)

	_, err = ValidateJWT(token + "x")
	assert.Error(t, err)

	// Token signed with a different secret must be rejected
	SetJWTSecret("another-secret")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword("s3cret-pass", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestOTPSecretAndVerify(t *testing.T) {
	secret, err := GenerateOTPSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, VerifyOTP(secret, code))
	assert.False(t, VerifyOTP(secret, "000000"))
}

func TestOTPQRCodeURL(t *testing.T) {
	u := GetOTPQRCodeURL("SECRET123", "user@example.com")
	assert.Contains(t, u, "otpauth://totp/")
	assert.Contains(t, u, "SECRET123")
	assert.Contains(t, u, "user@example.com")
}

func TestTokenBlacklist(t *testing.T) {
	assert.False(t, IsTokenBlacklisted("tok-live"))

	BlacklistToken("tok-live", time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted("tok-live"))

	// An entry past its expiry no longer blocks
	BlacklistToken("tok-expired", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenBlacklisted("tok-expired"))
}
