package ticket

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/util"
)

const (
	Issuer   = "urn:example:issuer"
	Audience = "urn:example:audience"
)

var signingMethod = jwt.SigningMethodRS256

type Codec interface {
	// Sign mints a compact RS256 ticket for the visitor. A missing or unusable
	// private key yields ErrSigning.
	Sign(cfg *models.QueueConfig, visitorID string, position int64, expiry time.Time) (string, error)
	// Verify checks signature, issuer, audience, subject and expiry. Every
	// failure yields ErrInvalidToken.
	Verify(cfg *models.QueueConfig, token string) (*models.TicketClaims, error)
}

type Option func(*jwtCodec)

// WithClock overrides the time source used for iat and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *jwtCodec) {
		c.now = now
	}
}

type jwtCodec struct {
	now func() time.Time
}

func NewCodec(opts ...Option) Codec {
	c := &jwtCodec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *jwtCodec) Sign(cfg *models.QueueConfig, visitorID string, position int64, expiry time.Time) (string, error) {
	if cfg.PrivateKey == nil {
		return "", fmt.Errorf("%w: queue %q has no private key", ErrSigning, cfg.QueueName)
	}

	claims := models.TicketClaims{
		Position: position,
		Expiry:   util.TimeToISO8601Str(expiry),
		UUID:     visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   cfg.QueueName,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	}

	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}

	return token, nil
}

func (c *jwtCodec) Verify(cfg *models.QueueConfig, token string) (*models.TicketClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if cfg.PublicKey == nil {
		return nil, fmt.Errorf("%w: queue %q has no public key", ErrInvalidToken, cfg.QueueName)
	}

	claims := &models.TicketClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) {
			return cfg.PublicKey, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithSubject(cfg.QueueName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.UUID); err != nil {
		return nil, fmt.Errorf("%w: malformed UUID claim: %v", ErrInvalidToken, err)
	}
	if claims.Position < 1 {
		return nil, fmt.Errorf("%w: position %d out of range", ErrInvalidToken, claims.Position)
	}
	if _, err := claims.ExpiryTime(); err != nil {
		return nil, fmt.Errorf("%w: malformed expiry claim: %v", ErrInvalidToken, err)
	}

	return claims, nil
}
