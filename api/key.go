package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Authorizer defines a mechanism needed to authorize API requests
type Authorizer interface {
	NewToken(subject string, ttl time.Duration) (string, error)
	Valid(req *http.Request) bool
}

// tokenIssuer is set on every token minted by the bot
const tokenIssuer = "budgetbot"

// Key signs and checks HS256 API tokens
type Key struct {
	bytes []byte
}

// NewKey returns a key for the shared API secret
func NewKey(secret string) (Key, error) {
	if secret == "" {
		return Key{}, errors.New("API secret is empty")
	}
	return Key{bytes: []byte(secret)}, nil
}

// NewToken returns a new token signed by the Key. A ttl of 0 creates a
// token that does not expire.
func (k Key) NewToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString(k.bytes)
}

// ValidToken returns whether the given string
// is an authentication token signed by the Key.
func (k Key) ValidToken(str string) bool {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(str, &claims, k.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil &&
		token.Valid &&
		claims.Issuer == tokenIssuer
}

// Valid returns whether the given request
// bears an authorization token signed by the Key.
func (k Key) Valid(req *http.Request) bool {
	fields := strings.Fields(req.Header.Get("Authorization"))
	return len(fields) == 2 &&
		fields[0] == "Bearer" &&
		k.ValidToken(fields[1])
}

func (k Key) keyFunc(*jwt.Token) (interface{}, error) {
	return k.bytes, nil
}
