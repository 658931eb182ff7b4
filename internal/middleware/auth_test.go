package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cairnhealth/cairn/internal/auth"
	"github.com/cairnhealth/cairn/internal/model"
)

func TestRequireCaregiver(t *testing.T) {
	var reached bool
	h := RequireCaregiver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	cases := []struct {
		name     string
		userType string
		noAuth   bool
		want     int
	}{
		{"caregiver passes", model.UserTypeCaregiver, false, http.StatusOK},
		{"patient forbidden", model.UserTypePatient, false, http.StatusForbidden},
		{"unauthenticated forbidden", "", true, http.StatusForbidden},
	}
	for _, tc := range cases {
		reached = false
		r := httptest.NewRequest(http.MethodDelete, "/api/safe-zones/1", nil)
		if !tc.noAuth {
			r = r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{
				UserID: 1, UID: "uid-x", UserType: tc.userType,
			}))
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
		if reached != (tc.want == http.StatusOK) {
			t.Errorf("%s: handler reached = %v", tc.name, reached)
		}
	}
}
