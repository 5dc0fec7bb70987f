package auth

import (
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/security"
)

// RequireToken accepts requests whose bearer token matches tokenHash and
// stores the operator in the request context.
func RequireToken(tokenHash, operatorName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !security.CheckToken(tokenHash, strings.TrimSpace(token)) {
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).Warn("rejected operator API request")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), &Operator{Name: operatorName})))
		})
	}
}
