// Package security reads the claims of the access token the client was
// given. Signature verification is the server's job; the client only needs
// the viewer identity and the expiry.
package security

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"client_go/internal/domain"
)

// TokenInfo holds the claims the client uses.
type TokenInfo struct {
	Subject   string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken parses a JWT without verifying its signature.
func InspectToken(tokenStr string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: parse access token: %v", domain.ErrUnauthorized, err)
	}

	info := &TokenInfo{}
	info.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	for _, key := range []string{"user_id", "uid"} {
		if id := claimInt(claims[key]); id != 0 {
			info.UserID = id
			break
		}
	}
	if info.UserID == 0 {
		// Some servers put the numeric user id in sub.
		info.UserID, _ = strconv.ParseInt(info.Subject, 10, 64)
	}
	return info, nil
}

// Expired reports whether the token is past its expiry. Tokens without an
// exp claim never expire.
func (i *TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, zero if expired or unbounded.
func (i *TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if i.ExpiresAt.IsZero() || i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

func claimInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	}
	return 0
}
