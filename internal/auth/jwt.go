// Package auth resolves the caller's identity from a bearer access token.
// Tokens are HS256 JWTs whose subject is the user id, as issued by the
// hosted auth provider. Roles are never read from the token; they live in
// the user_roles table.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrMissingToken is returned when no bearer token is supplied.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrRevokedToken is returned for tokens that were signed out.
	ErrRevokedToken = errors.New("token has been signed out")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID    string
	Name      string
	TokenID   string    // jti, or a digest of the raw token when absent
	ExpiresAt time.Time // zero when the token carries no exp
}

// Claims is the subset of access-token claims the service reads.
type Claims struct {
	jwt.RegisteredClaims
	Name         string         `json:"name,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName picks the best human-readable name carried by the token.
func (c *Claims) DisplayName() string {
	for _, k := range []string{"full_name", "name"} {
		if v, ok := c.UserMetadata[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(c.Name)
}

// Verifier validates access tokens and tracks signed-out tokens until they
// expire. Revocations are held in process memory.
type Verifier struct {
	secret  []byte
	issuer  string
	revoked *cache.Cache
}

// NewVerifier returns a verifier for HS256 tokens signed with secret. When
// issuer is non-empty the iss claim must match it.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		revoked: cache.New(time.Hour, 10*time.Minute),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// Verify parses and validates tokenString.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	id := Identity{
		UserID:  claims.Subject,
		Name:    claims.DisplayName(),
		TokenID: claims.ID,
	}
	if id.TokenID == "" {
		sum := sha256.Sum256([]byte(tokenString))
		id.TokenID = hex.EncodeToString(sum[:])
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	if _, gone := v.revoked.Get(id.TokenID); gone {
		return Identity{}, ErrRevokedToken
	}
	return id, nil
}

// Revoke marks the identity's token as signed out until it expires.
func (v *Verifier) Revoke(id Identity) {
	if id.TokenID == "" {
		return
	}
	ttl := time.Until(id.ExpiresAt)
	if id.ExpiresAt.IsZero() || ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	v.revoked.Set(id.TokenID, struct{}{}, ttl)
}

// Sign issues a token for userID. It is used by tests and the CLI to mint
// development tokens.
func (v *Verifier) Sign(userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserMetadata: map[string]any{"full_name": name},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
