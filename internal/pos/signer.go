package pos

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer builds the short-lived signed credential the upstream POS API
// expects on every call. Tokens are single-use: the issue time and request
// id differ per call even for identical discriminators, which is what the
// upstream's replay rejection keys on.
type Signer struct {
	issuer string
	secret []byte
}

func NewSigner(issuer, secret string) *Signer {
	return &Signer{issuer: issuer, secret: []byte(secret)}
}

// Sign issues a credential for one call. The discriminator carries the
// caller's request state (day, cursor position) into the request id so
// upstream logs can correlate pages of the same day.
func (s *Signer) Sign(discriminator string) (string, error) {
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"iat": time.Now().Unix(),
		"jti": fmt.Sprintf("%s-%s", uuid.NewString(), discriminator),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign pos credential: %w", err)
	}
	return token, nil
}
