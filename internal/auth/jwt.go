package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erazemk/stocktaker/internal/model"
)

// Issuer is written to and required in every token.
const Issuer = "stocktaker"

// TokenExpiry is the default token lifetime.
const TokenExpiry = 7 * 24 * time.Hour

var signingMethod = jwt.SigningMethodHS256

// Claims is a snapshot of the user at login time. Requests are authorized
// against the stored user, so a stale snapshot only affects what clients
// display until they log in again.
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for user valid from now for expiry. A zero expiry
// uses TokenExpiry. Every call gets a fresh token ID.
func NewClaims(user *model.User, now time.Time, expiry time.Duration) *Claims {
	if expiry <= 0 {
		expiry = TokenExpiry
	}
	return &Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		Approved: user.Approved,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
}

// Sign encodes the claims as an HS256 token.
func (c *Claims) Sign(secret string) (string, error) {
	signed, err := jwt.NewWithClaims(signingMethod, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate runs after the registered claims are checked.
func (c *Claims) Validate() error {
	if c.UserID == "" {
		return errors.New("token has no user")
	}
	if c.Subject != c.UserID {
		return jwt.ErrTokenInvalidSubject
	}
	return nil
}

// Expiry returns when the token stops being valid, or the zero time.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Stale reports whether user has changed since the claims were issued.
func (c *Claims) Stale(user *model.User) bool {
	return c.Email != user.Email || c.Role != user.Role || c.Approved != user.Approved
}

// GenerateToken signs a new token for user.
func GenerateToken(secret string, user *model.User, expiry time.Duration) (string, error) {
	return NewClaims(user, time.Now(), expiry).Sign(secret)
}

// ValidateToken parses tokenStr, checks its signature, issuer and expiry and
// returns the claims.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return claims, nil
}
