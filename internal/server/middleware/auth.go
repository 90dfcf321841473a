package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"

	"github.com/updownlabs/updownd/internal/domain"
)

// callerKey is the context key under which the verified caller address is
// stored.
type callerKey struct{}

// Auth returns middleware that validates API requests against a bcrypt hash
// of the API key. Clients present the key either as a Bearer token in the
// Authorization header or in the X-API-Key header. If apiKeyHash is empty,
// the middleware passes all requests through (disabled).
func Auth(apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no API key hash is configured, authentication is disabled.
			if apiKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(token)); err != nil {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerAddress returns middleware that extracts and validates the
// X-Caller-Address header, storing it in the request context. Mutating
// handlers require it; read-only handlers tolerate its absence.
func CallerAddress() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := strings.TrimSpace(r.Header.Get("X-Caller-Address"))
			if addr != "" {
				if !common.IsHexAddress(addr) {
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusBadRequest)
					w.Write([]byte(`{"error":"invalid caller address"}`))
					return
				}
				// Normalize to the checksummed form so address comparisons in
				// the engine are canonical.
				addr = common.HexToAddress(addr).Hex()
				r = r.WithContext(context.WithValue(r.Context(), callerKey{}, domain.Address(addr)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFrom returns the verified caller address stored by CallerAddress,
// or an empty address if the request carried none.
func CallerFrom(ctx context.Context) domain.Address {
	addr, _ := ctx.Value(callerKey{}).(domain.Address)
	return addr
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	// Check Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check X-API-Key header.
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
