// Package auth verifies the bearer tokens issued by the identity service.
// Tokens are HS256 JWTs carrying the subject and a role claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer = "customer"
	RoleOperator = "operator"
)

var (
	ErrMissingSecret = errors.New("token secret is required")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	Subject string
	Role    string
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a bearer token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role, _ := claims["role"].(string)
	if role != RoleCustomer && role != RoleOperator {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}

	return &Claims{Subject: subject, Role: role}, nil
}

// Sign issues a token for the given subject and role. Primarily used by
// tests and local tooling; production tokens come from the identity
// service.
func (v *Verifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
