package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smartfiller-backend/internal/model"
)

// ErrInvalidToken covers every token verification failure: bad
// signature, wrong algorithm, malformed payload, expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the decoded, verified payload of a session token. It is the
// sole mechanism by which identity enters the rest of the system; no
// operation trusts client-supplied identity fields.
type Claims struct {
	UserID      int64      `json:"user_id"`
	CompanyID   int64      `json:"company_id"`
	CompanyRole model.Role `json:"company_role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed session tokens. The signing secret
// is process-wide state loaded once at startup; rotating it invalidates
// all outstanding tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token service bound to the given secret and
// lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue produces a signed, time-limited credential binding user id,
// company id and company role.
func (t *Tokens) Issue(userID, companyID int64, companyRole model.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      userID,
		CompanyID:   companyID,
		CompanyRole: companyRole,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. All
// failure modes collapse into ErrInvalidToken.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
