// Package auth resolves the identity behind a WebSocket handshake.
package auth

//go:generate mockgen -destination=../mocks/mock_auth.go -package=mocks github.com/mrsingh-rishi/voice-relay/auth Resolver,UserLookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-jwt/jwt"
)

var (
	ErrNoCredentials = errors.New("auth: no credentials")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Identity is the authenticated user of a session.
type Identity struct {
	UserID string
	Claims map[string]interface{}
}

// Credentials are what the handshake carries.
type Credentials struct {
	Cookies map[string]string
}

// Resolver returns the identity for creds, or nil when there is none.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (*Identity, error)
}

// UserLookup reports whether a user id from a valid token still exists.
type UserLookup interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, userID string) (bool, error)

func (f UserLookupFunc) UserExists(ctx context.Context, userID string) (bool, error) {
	return f(ctx, userID)
}

// AnyUser accepts every user id carried by a valid token.
var AnyUser = UserLookupFunc(func(context.Context, string) (bool, error) { return true, nil })

// JWTCookieResolver reads an HMAC-signed JWT from a cookie and maps a claim to
// the user id.
type JWTCookieResolver struct {
	Secret     []byte
	CookieName string
	UserClaim  string
	Users      UserLookup
	Logger     *slog.Logger
}

func NewJWTCookieResolver(secret, cookieName, userClaim string, users UserLookup) *JWTCookieResolver {
	if users == nil {
		users = AnyUser
	}
	return &JWTCookieResolver{
		Secret:     []byte(secret),
		CookieName: cookieName,
		UserClaim:  userClaim,
		Users:      users,
		Logger:     slog.Default(),
	}
}

// Resolve returns (nil, nil) for a missing or unusable token and an error only
// when the user lookup itself fails.
func (r *JWTCookieResolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	claims, err := r.parse(creds)
	if err != nil {
		r.reject("token", "error", err)
		return nil, nil
	}
	userID, ok := claimString(claims[r.UserClaim])
	if !ok || userID == "" {
		r.reject("missing user claim", "claim", r.UserClaim)
		return nil, nil
	}
	exists, err := r.Users.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if !exists {
		r.reject("unknown user", "user_id", userID)
		return nil, nil
	}
	return &Identity{UserID: userID, Claims: claims}, nil
}

func (r *JWTCookieResolver) reject(reason string, args ...any) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("handshake rejected", append([]any{"reason", reason}, args...)...)
}

func (r *JWTCookieResolver) parse(creds Credentials) (jwt.MapClaims, error) {
	raw := creds.Cookies[r.CookieName]
	if raw == "" {
		return nil, ErrNoCredentials
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func claimString(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}
