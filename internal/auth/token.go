package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

const issuer = "wallet"

// Identity is what a verified credential says about its bearer. IsPremium is
// a snapshot taken when the credential was issued.
type Identity struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsPremium bool   `json:"isPremium"`
}

type Claims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsPremium bool   `json:"premium"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     identity.Email,
		Name:      identity.Name,
		IsPremium: identity.IsPremium,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		IsPremium: claims.IsPremium,
	}, nil
}

// Verifier maps bearer credentials to identities and issues new ones.
type Verifier struct {
	secret string
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: secret, ttl: ttl}
}

// Verify accepts either a raw token or an "Authorization" header value.
func (v *Verifier) Verify(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if scheme, rest, ok := strings.Cut(credential, " "); ok {
		if !strings.EqualFold(scheme, "Bearer") {
			return Identity{}, ErrUnauthorized
		}
		credential = strings.TrimSpace(rest)
	}
	if credential == "" {
		return Identity{}, ErrUnauthorized
	}
	return ParseToken(v.secret, credential)
}

func (v *Verifier) Issue(identity Identity) (string, error) {
	return GenerateToken(v.secret, identity, v.ttl)
}
