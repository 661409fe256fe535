package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject returns the "sub" claim of the current access token, which the
// broker sets to the account username. The token signature is not verified:
// the session only reads claims it was itself issued.
func (s *Session) Subject() (string, error) {
	s.mu.RLock()
	tok := s.accessToken
	s.mu.RUnlock()

	if tok == "" {
		return "", ErrNoToken
	}

	claims, err := parseClaims(tok)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject claim: %w", err)
	}
	if sub == "" {
		return "", errors.New("access token has no subject claim")
	}
	return sub, nil
}

// Expiry returns the "exp" claim of the current access token, if present.
func (s *Session) Expiry() (time.Time, bool) {
	s.mu.RLock()
	tok := s.accessToken
	s.mu.RUnlock()

	return tokenExpiry(tok)
}

func tokenExpiry(tok string) (time.Time, bool) {
	if tok == "" {
		return time.Time{}, false
	}
	claims, err := parseClaims(tok)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func parseClaims(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}
