package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// APIKeyMiddleware accepts any of a fixed set of keys. Only their hashes
// are kept in memory.
type APIKeyMiddleware struct {
	headerName string
	hashes     [][]byte
}

func NewAPIKeyMiddleware(headerName string, keys []string) *APIKeyMiddleware {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	m := &APIKeyMiddleware{headerName: headerName}
	for _, k := range keys {
		if k == "" {
			continue
		}
		m.hashes = append(m.hashes, []byte(HashAPIKey(k)))
	}
	return m
}

// Authenticate marks requests carrying a valid key as authenticated and
// rejects requests carrying an invalid one. Requests without a key pass
// through for the next authenticator.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		hash := []byte(HashAPIKey(key))
		matched := 0
		for _, h := range m.hashes {
			matched |= subtle.ConstantTimeCompare(h, hash)
		}
		if matched != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{
			Subject: "key:" + string(hash[:12]),
			Role:    RoleAdmin,
			Method:  MethodAPIKey,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
