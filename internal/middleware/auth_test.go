package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "user-42")
	noSubject := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "")
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), "user-42")
	wrongAlg := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), "user-42")

	tests := []struct {
		name       string
		cfg        AuthConfig
		header     string
		wantStatus int
		wantUser   string
	}{
		{"anonymous", AuthConfig{Secret: testSecret}, "", http.StatusOK, DefaultUserID},
		{"no secret ignores token", AuthConfig{}, "Bearer " + wrongKey, http.StatusOK, DefaultUserID},
		{"valid token", AuthConfig{Secret: testSecret}, "Bearer " + valid, http.StatusOK, "user-42"},
		{"lowercase scheme", AuthConfig{Secret: testSecret}, "bearer " + valid, http.StatusOK, "user-42"},
		{"token without subject", AuthConfig{Secret: testSecret}, "Bearer " + noSubject, http.StatusOK, DefaultUserID},
		{"wrong key", AuthConfig{Secret: testSecret}, "Bearer " + wrongKey, http.StatusUnauthorized, ""},
		{"wrong algorithm", AuthConfig{Secret: testSecret}, "Bearer " + wrongAlg, http.StatusUnauthorized, ""},
		{"bad format", AuthConfig{Secret: testSecret}, "Token " + valid, http.StatusUnauthorized, ""},
		{"required without token", AuthConfig{Secret: testSecret, Required: true}, "", http.StatusUnauthorized, ""},
		{"required with token", AuthConfig{Secret: testSecret, Required: true}, "Bearer " + valid, http.StatusOK, "user-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			h := Auth(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}
