package middleware

import (
	"net/http"
	"strings"

	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/store"
)

// RequireAuth validates the Authorization bearer token and populates the
// request's AuthContext with the resolved user. Unknown users are rejected:
// token issuance lives elsewhere, but every caller here must already exist
// in the directory.
func RequireAuth(verifier *auth.Verifier, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			uid, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByUID(uid)
			if err != nil || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:   user.ID,
				UID:      user.UID,
				UserType: user.Type,
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireCaregiver checks that the authenticated user is a caregiver.
func RequireCaregiver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsCaregiver(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
