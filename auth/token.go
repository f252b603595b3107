package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"whisperfeed/domain"
	"whisperfeed/errors"
)

// Claims defines the structure of the data stored inside the JWT.
// Subject carries the normalized email; ID (jti) is a per-token nonce.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies the bearer tokens embedded in magic links.
// Verification is stateless: signature plus expiry, no storage round-trip,
// because every post and every stream reconnect re-verifies the token.
// Tokens are reusable until expiry; the nonce is not tracked as consumed.
type TokenService struct {
	key []byte
	ttl time.Duration
}

func NewTokenService(key []byte, ttl time.Duration) TokenService {
	return TokenService{key: key, ttl: ttl}
}

// Issue creates a signed JWT binding the identity for the configured TTL.
// Delivery of the resulting link is the mail collaborator's concern.
func (s TokenService) Issue(identity domain.Identity) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    "whisperfeed",
		},
	}

	// HS256: symmetric signing, same key verifies.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Verify parses and validates the signature and expiration of a JWT string,
// returning the bound identity. Expired tokens map to ErrTokenExpired;
// everything else unparseable or forged maps to ErrTokenMalformed.
func (s TokenService) Verify(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.ErrTokenExpired
		}
		return "", errors.ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.ErrTokenMalformed
	}
	return domain.Identity(claims.Subject), nil
}
