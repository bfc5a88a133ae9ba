package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "user_id"

var errNoToken = errors.New("no bearer token")

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, code, err := authenticate(r, jwtSecret)
			if err != nil {
				writeAuthError(w, err.Error(), code)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth lets anonymous requests through without a user. A token that
// is present but invalid is still rejected.
//
// The checkout return route uses it: a browser can land back from the gateway
// before its session is restored, and the flow then waits for the identity.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, code, err := authenticate(r, jwtSecret)
			switch {
			case errors.Is(err, errNoToken):
				next.ServeHTTP(w, r)
			case err != nil:
				writeAuthError(w, err.Error(), code)
			default:
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
			}
		})
	}
}

func authenticate(r *http.Request, jwtSecret string) (string, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "auth_required", errNoToken
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "auth_invalid_scheme", errors.New("invalid authorization scheme")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(authHeader, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", "auth_invalid", errors.New("invalid token")
	}
	return claims.UserID, "", nil
}

// IssueToken signs a token for userID. Used by tripctl and tests.
func IssueToken(jwtSecret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func writeAuthError(w http.ResponseWriter, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
