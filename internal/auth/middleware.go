package auth

import (
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"turnos/internal/apperr"
	"turnos/internal/models"
)

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}

// authenticate verifies the token and that its session is still live.
func authenticate(db *gorm.DB, s *Signer, raw string) (Claims, string) {
	claims, err := s.Verify(raw)
	if err != nil {
		return Claims{}, "invalid token"
	}
	var sess models.Session
	if claims.JWTID == "" || db.First(&sess, "jti = ?", claims.JWTID).Error != nil || sess.AccountID != claims.AccountID {
		return Claims{}, "session not found"
	}
	if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return Claims{}, "session expired/revoked"
	}
	return claims, ""
}

func JWTAuth(db *gorm.DB, s *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				apperr.WriteJSON(w, apperr.Unauthenticated("Authentication required"))
				return
			}
			claims, reason := authenticate(db.WithContext(r.Context()), s, raw)
			if reason != "" {
				apperr.WriteJSON(w, apperr.Unauthenticated(reason))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWT attaches claims when a valid token is presented and otherwise
// lets the request through as anonymous.
func OptionalJWT(db *gorm.DB, s *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearer(r); ok {
				if claims, reason := authenticate(db.WithContext(r.Context()), s, raw); reason == "" {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).HasRole(role) {
				apperr.WriteJSON(w, apperr.Forbidden("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
