package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Issuer is the label embedded in enrollment URIs.
	Issuer = "Financial Hub"

	// Period is the TOTP time step in seconds.
	Period = 30

	// Skew is the tolerance window in time steps on either side of now.
	// Two steps cover both generation skew (the emailed code is computed at
	// challenge issuance) and verification skew (the user may scan the QR
	// and type a later code).
	Skew = 2

	// QRSize is the rendered QR image edge in pixels.
	QRSize = 120
)

func validateOpts(period uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a fresh cryptographically random base32 shared
// secret suitable for TOTP derivation.
func GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: Issuer,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "err", err)
		return "", err
	}
	return key.Secret(), nil
}

// EnrollmentURI builds the standard otpauth://totp/ URI embedding issuer,
// account label and secret for authenticator-app enrollment.
func EnrollmentURI(secret, accountLabel, issuerLabel string) string {
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuerLabel)
	params.Set("period", fmt.Sprintf("%d", Period))
	params.Set("algorithm", "SHA1")
	params.Set("digits", "6")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuerLabel + ":" + accountLabel,
		RawQuery: params.Encode(),
	}
	return u.String()
}

// RenderQR encodes the enrollment URI as a PNG QR image and returns it as a
// data URI.
func RenderQR(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse enrollment uri: %w", err)
	}

	img, err := key.Image(QRSize, QRSize)
	if err != nil {
		return "", fmt.Errorf("failed to render qr image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode qr png: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CurrentCode computes the six-digit code valid at the current time step.
func CurrentCode(secret string) (string, error) {
	return GenerateCodeAt(secret, time.Now().UTC())
}

// GenerateCodeAt computes the six-digit code for the given time.
func GenerateCodeAt(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t, validateOpts(Period))
	if err != nil {
		slog.Error("Failed to generate totp passcode", "err", err)
		return "", err
	}
	return code, nil
}

// Verify reports whether the submitted code matches the secret within the
// tolerance window. Callers only ever see a boolean: a malformed code and an
// out-of-window code are indistinguishable.
func Verify(submittedCode, secret string) bool {
	return VerifyAt(submittedCode, secret, time.Now().UTC())
}

// VerifyAt is Verify evaluated at an explicit time.
func VerifyAt(submittedCode, secret string, t time.Time) bool {
	valid, err := totp.ValidateCustom(submittedCode, secret, t, validateOpts(Period))
	if err != nil {
		slog.Debug("Totp validation rejected input", "err", err)
		return false
	}
	return valid
}
