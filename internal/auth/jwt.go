package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

// GenerateToken signs a session token whose subject is the identity id.
func GenerateToken(secret []byte, ident Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  ident.ID,
		"anon": !ident.Authenticated,
		"exp":  time.Now().Add(tokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseToken verifies tokenString and returns the identity it carries.
func ParseToken(secret []byte, tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, errors.New("token without subject")
	}
	anon, _ := claims["anon"].(bool)

	return Identity{ID: sub, Authenticated: !anon && !IsPseudo(sub)}, nil
}
