package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"

	"github.com/pquerna/otp/totp"
)

const otpIssuer = "PolyTerm"

// GenerateOTPSecret generates a random base32 TOTP secret.
func GenerateOTPSecret() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

// VerifyOTP checks a 6-digit TOTP code against the secret.
func VerifyOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}

// GetOTPQRCodeURL builds the otpauth:// provisioning URL for authenticator apps.
func GetOTPQRCodeURL(secret, email string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(otpIssuer), url.PathEscape(email), secret, url.QueryEscape(otpIssuer))
}
