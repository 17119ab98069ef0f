package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	key []byte
	ttl time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{key: []byte(secret), ttl: ttl}
}

// Sign returns a token for c that expires at the returned time.
func (s *Signer) Sign(c Claims) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := tokenClaims{
		Username: c.Username,
		Role:     c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(c.AccountID), 10),
			ID:        c.JWTID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	return signed, exp, err
}

func (s *Signer) Verify(tokenStr string) (Claims, error) {
	var tc tokenClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &tc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(tc.Subject, 10, 64)
	if err != nil || id == 0 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{AccountID: uint(id), Username: tc.Username, Role: tc.Role, JWTID: tc.ID}, nil
}
