// Package mfa implements TOTP enrollment and verification for the login
// step-up flow. Seeds are sealed in the credential vault; only the single
// verification call ever sees the plaintext seed.
package mfa

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const issuer = "TradingPlatform"

// GenerateSeed creates a new TOTP seed for the account. Returns the base32
// secret (to be sealed immediately) and the otpauth:// provisioning URL for
// authenticator apps.
func GenerateSeed(accountName string) (secret, provisioningURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode checks a one-time code against the seed with a tolerance of
// one 30-second step in either direction for client clock skew.
func VerifyCode(seed, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, seed, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
