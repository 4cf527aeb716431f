package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenGenerator mints the opaque token value carried by a session.
type TokenGenerator interface {
	GenerateToken(subject string, tier Tier, expiry time.Duration) (string, error)
}

// DemoTokenGenerator issues the fixed string tokens of the demo deployment:
// "valid-session" for ephemeral sessions and "persistent-session-<id>" for
// trusted devices. Unsuitable beyond a prototype; kept as the documented
// demo behavior rather than silently replaced.
type DemoTokenGenerator struct{}

func (g *DemoTokenGenerator) GenerateToken(subject string, tier Tier, expiry time.Duration) (string, error) {
	switch tier {
	case TierTrustedDevice:
		return fmt.Sprintf("persistent-session-%s", subject), nil
	default:
		return "valid-session", nil
	}
}

// JwtTokenGenerator issues HS256-signed tokens carrying the tier and expiry
// as claims, so the credential stays self-describing.
type JwtTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator.
func NewJwtTokenGenerator(secret, issuer, audience string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// Claims is the JWT claim set for issued sessions.
type Claims struct {
	Tier Tier `json:"tier"`
	jwt.RegisteredClaims
}

func (g *JwtTokenGenerator) GenerateToken(subject string, tier Tier, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Tier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return "", err
	}
	return ss, nil
}

// ParseToken parses and validates a signed session token.
func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return token, nil
}
