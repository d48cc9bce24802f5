// Package auth verifies identity-provider session tokens.
//
// Authentication itself is delegated to an external provider; what reaches
// this API is a signed JWT whose claims carry the provider's stable user
// identity string. This package only checks the signature and expiry and
// extracts that identity. No core logic interprets the identity's internal
// structure.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseKeySpec parses a "kid:secret,kid2:secret2" key set, the format used
// by the JWT_KEYS environment variable.
func ParseKeySpec(spec string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(spec, ",") {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid key entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	if len(keys) == 0 {
		return nil, errors.New("no keys in spec")
	}
	return keys, nil
}

// JWTManager validates (and, for tests and tooling, mints) session tokens.
// It supports either a single shared secret or a kid-addressed key set so
// previously-issued tokens keep verifying across a secret rotation.
type JWTManager struct {
	keys      map[string]string // kid -> secret
	activeKid string            // kid used when signing
	duration  time.Duration
}

// Claims is the session token payload. Identity is the external auth
// provider's user id and is the value passed explicitly into every store
// operation.
type Claims struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager backed by a single shared secret.
func NewJWTManager(secret string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:      map[string]string{"": secret},
		activeKid: "",
		duration:  duration,
	}
}

// NewJWTManagerFromKeys returns a manager with a rotation-capable key set.
// activeKid selects the signing key; all keys verify.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	return &JWTManager{keys: keys, activeKid: activeKid, duration: duration}
}

// GenerateToken issues a signed session token for the given identity.
func (m *JWTManager) GenerateToken(identity, name string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		Identity: identity,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims. Tokens
// signed with any configured key are accepted; the kid header, when
// present, selects the key.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid := ""
		if k, ok := token.Header["kid"].(string); ok {
			kid = k
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Identity == "" {
		// fall back to the registered subject for tokens minted by
		// providers that only set sub
		claims.Identity = claims.Subject
	}
	if claims.Identity == "" {
		return nil, errors.New("token carries no identity")
	}
	return claims, nil
}
