package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const OperatorKey contextKey = "operator"

// GetOperatorFromContext returns the dashboard user that authenticated the request.
func GetOperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(OperatorKey).(string)
	return op, ok && op != ""
}

// WithOperator stores the authenticated operator on ctx.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, OperatorKey, operator)
}

// BasicAuth checks HTTP basic credentials against a bcrypt hash. With an empty
// hash every request passes as the configured user.
func BasicAuth(user, passwordHash, realm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), user)))
				return
			}

			u, p, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).Warn("dashboard authentication failed")
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), u)))
		})
	}
}
