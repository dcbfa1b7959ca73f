package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeTokens map[string]string

func (f fakeTokens) Parse(raw string) (string, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func authRouter(opts AuthOptions, seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Authenticate(opts))
	r.GET("/open", func(c *gin.Context) {
		*seen, _ = CustomerID(c)
		c.Status(http.StatusOK)
	})
	r.GET("/closed", RequireAuth(), func(c *gin.Context) {
		*seen, _ = CustomerID(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthenticate_Bearer(t *testing.T) {
	var seen string
	r := authRouter(AuthOptions{Tokens: fakeTokens{"good": "cust-1"}}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/closed", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || seen != "cust-1" {
		t.Fatalf("got %d %q", w.Code, seen)
	}

	// scheme is case-insensitive
	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "bearer good")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "cust-1" {
		t.Fatalf("lowercase scheme not accepted: %q", seen)
	}
}

func TestAuthenticate_InvalidTokenRejected(t *testing.T) {
	var seen string
	r := authRouter(AuthOptions{Tokens: fakeTokens{}}, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer forged")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), `"unauthorized"`) {
		t.Fatalf("expected 401, got %d %s", w.Code, w.Body.String())
	}
}

func TestAuthenticate_AnonymousAndRequireAuth(t *testing.T) {
	var seen string
	r := authRouter(AuthOptions{Tokens: fakeTokens{}}, &seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	if w.Code != http.StatusOK || seen != "" {
		t.Fatalf("anonymous open route: %d %q", w.Code, seen)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/closed", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on closed route, got %d", w.Code)
	}
}

func TestAuthenticate_UserHeaderOnlyWhenTrusted(t *testing.T) {
	var seen string
	untrusted := authRouter(AuthOptions{}, &seen)
	req := httptest.NewRequest(http.MethodGet, "/closed", nil)
	req.Header.Set(HeaderUserID, "cust-9")
	w := httptest.NewRecorder()
	untrusted.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("header must be ignored when untrusted, got %d", w.Code)
	}

	trusted := authRouter(AuthOptions{TrustUserHeader: true}, &seen)
	w = httptest.NewRecorder()
	trusted.ServeHTTP(w, req)
	if w.Code != http.StatusOK || seen != "cust-9" {
		t.Fatalf("trusted header: %d %q", w.Code, seen)
	}
}

func TestBearer(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"Bearer   ":  false,
		"Basic abc":  false,
		"":           false,
		"Bearer":     false,
	}
	for in, want := range cases {
		if _, ok := bearer(in); ok != want {
			t.Fatalf("bearer(%q) ok=%v want %v", in, ok, want)
		}
	}
}
