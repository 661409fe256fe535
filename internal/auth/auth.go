// Package auth manages the broker session: it exchanges a long-lived refresh
// token for short-lived access tokens and hands a valid bearer credential to
// every authenticated call.
//
// Refresh endpoint (POST, token passed as query parameter):
//   - Production: https://oauth.alor.ru/refresh
//   - Dev: https://oauthdev.alor.ru/refresh
package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuth matches every *AuthError via errors.Is.
var ErrAuth = errors.New("auth error")

// ErrNoToken is returned when a token is requested before any renewal succeeded.
var ErrNoToken = errors.New("no access token")

// ErrorKind tells apart the ways a refresh exchange can fail.
type ErrorKind int

const (
	KindStatus    ErrorKind = iota + 1 // non-200 response
	KindDecode                         // body is not valid JSON or lacks AccessToken
	KindTransport                      // request could not complete
)

func (k ErrorKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// AuthError reports a failed refresh token exchange.
type AuthError struct {
	Kind       ErrorKind
	StatusCode int    // set for KindStatus
	Body       []byte // response body, if one was read
	Err        error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("token refresh failed: status %d", e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("token refresh failed: decode response: %v", e.Err)
	default:
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrAuth.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// BearerHeader builds the standard header set for an authenticated call.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+token)
	return h
}
