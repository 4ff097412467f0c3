// Package tokens mints and validates the HS256 bearer tokens the sensor
// API accepts. The engine and the sensor share one secret; tokens are
// short-lived and carry a fixed scope.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// ScopeSensor is the scope claim carried by sensor access tokens.
const ScopeSensor = "sensor"

const defaultTTL = 15 * time.Minute

// Claims carried by sensor access tokens.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Minter issues short-lived tokens signed with the shared secret.
type Minter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewMinter(secret string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Minter{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint returns a signed token valid for the minter's TTL.
func (m *Minter) Mint() (string, error) {
	now := m.now()
	claims := Claims{
		Scope: ScopeSensor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "harrierd",
			Issuer:    "harrierd",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validator checks tokens minted with the shared secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses and verifies a token, rejecting non-HMAC signatures,
// expired tokens, and tokens without the sensor scope.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != ScopeSensor {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
