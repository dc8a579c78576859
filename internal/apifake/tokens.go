package apifake

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenLength = 32

var errInvalidToken = errors.New("invalid token")

// tokenIssuer creates HS256 access tokens and opaque, rotating refresh tokens.
// A refresh token is single use: redeeming it deletes it.
type tokenIssuer struct {
	key       []byte
	accessTTL time.Duration
	now       func() time.Time

	lock          sync.Mutex
	refreshTokens map[string]string   // token to user id
	accessIDs     map[string]struct{} // jti of every live access token
}

func newTokenIssuer(key []byte, accessTTL time.Duration, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		key:           key,
		accessTTL:     accessTTL,
		now:           now,
		refreshTokens: make(map[string]string),
		accessIDs:     make(map[string]struct{}),
	}
}

// Issue returns a new access and refresh token pair for userID
func (ti *tokenIssuer) Issue(userID string) (string, string, error) {
	access, err := ti.createAccessToken(userID)
	if err != nil {
		return "", "", err
	}

	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	refresh := hex.EncodeToString(tokenBytes)

	ti.lock.Lock()
	ti.refreshTokens[refresh] = userID
	ti.lock.Unlock()
	return access, refresh, nil
}

// Redeem consumes a refresh token and returns its user id
func (ti *tokenIssuer) Redeem(refresh string) (string, error) {
	ti.lock.Lock()
	defer ti.lock.Unlock()

	userID, ok := ti.refreshTokens[refresh]
	if !ok {
		return "", errInvalidToken
	}
	delete(ti.refreshTokens, refresh)
	return userID, nil
}

// RevokeRefreshTokens invalidates every outstanding refresh token
func (ti *tokenIssuer) RevokeRefreshTokens() {
	ti.lock.Lock()
	defer ti.lock.Unlock()
	ti.refreshTokens = make(map[string]string)
}

// RevokeAccessTokens invalidates every access token issued so far
func (ti *tokenIssuer) RevokeAccessTokens() {
	ti.lock.Lock()
	defer ti.lock.Unlock()
	ti.accessIDs = make(map[string]struct{})
}

// Verify validates an access token and returns its subject
func (ti *tokenIssuer) Verify(raw string) (string, error) {
	token, err := jwtlib.ParseWithClaims(raw, &jwtlib.RegisteredClaims{}, func(token *jwtlib.Token) (any, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.key, nil
	}, jwtlib.WithTimeFunc(ti.now), jwtlib.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(*jwtlib.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errInvalidToken
	}

	ti.lock.Lock()
	_, live := ti.accessIDs[claims.ID]
	ti.lock.Unlock()
	if !live {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

func (ti *tokenIssuer) createAccessToken(userID string) (string, error) {
	now := ti.now()
	claims := jwtlib.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ti.accessTTL)),
		ID:        uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	ti.lock.Lock()
	ti.accessIDs[claims.ID] = struct{}{}
	ti.lock.Unlock()
	return signed, nil
}
