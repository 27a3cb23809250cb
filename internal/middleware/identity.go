package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
)

// Identity extracts the viewer identity from an optional bearer token issued
// by the external auth system. This service treats authentication as a
// capability that yields a stable user id or nothing: a missing or invalid
// token means anonymous, never 401. Enforcement, if any, is someone else's
// job.
type Identity struct {
	secret []byte
}

func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret)}
}

type sessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func (m *Identity) Extract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		var claims sessionClaims
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !parsed.Valid || claims.Subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		if claims.SessionID != "" {
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// UserID returns the authenticated viewer's id, or nil for anonymous
// requests.
func UserID(ctx context.Context) *string {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return &id
	}
	return nil
}

// SessionID returns the browsing session id when the token carried one.
func SessionID(ctx context.Context) *string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return &id
	}
	return nil
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id set by RequestLogger.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
