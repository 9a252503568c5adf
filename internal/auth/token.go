// Package auth handles user registration, login and bearer tokens.
//
// Tokens are HS256 JWTs carrying the user's id and username. A token has
// no expiry unless the Issuer is given a TTL.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
)

// ErrUnauthorized is returned for a missing, malformed, forged or expired
// token.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Claims is the JWT payload.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.StandardClaims
}

// Issuer signs and verifies tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl <= 0 issues tokens without expiry.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source, for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Sign issues a token for id.
func (i *Issuer) Sign(id Identity) (string, error) {
	now := i.now()
	claims := Claims{
		ID:       id.ID,
		Username: id.Username,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = now.Add(i.ttl).Unix()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// Verify parses and checks a token. Any failure is ErrUnauthorized.
func (i *Issuer) Verify(token string) (Identity, error) {
	var claims Claims
	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if !claims.VerifyExpiresAt(i.now().Unix(), false) {
		return Identity{}, errors.Wrap(ErrUnauthorized, "token expired")
	}
	return Identity{ID: claims.ID, Username: claims.Username}, nil
}
