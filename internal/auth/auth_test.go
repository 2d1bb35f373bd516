package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGrantAndValidateSession(t *testing.T) {
	a := New("test-secret")

	token, userID, err := a.GrantSession("rin", "cat")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if token == "" || userID == "" {
		t.Fatal("empty token or user id")
	}

	claims, err := a.ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != userID || claims.Name != "rin" || claims.IconID != "cat" {
		t.Fatalf("claims: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := New("secret-a").GrantSession("rin", "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := New("secret-b").ValidateJWT(token); err == nil {
		t.Fatal("foreign token accepted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := New("s").ValidateJWT("not.a.token"); err == nil {
		t.Fatal("garbage accepted")
	}
}

func identityEcho(t *testing.T) (http.HandlerFunc, *[3]string) {
	var got [3]string
	return func(w http.ResponseWriter, r *http.Request) {
		got[0], got[1], got[2] = Identity(r)
	}, &got
}

func TestMiddlewareAttachesIdentityFromCookie(t *testing.T) {
	a := New("test-secret")
	token, userID, _ := a.GrantSession("rin", "cat")

	next, got := identityEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	a.Middleware(next)(httptest.NewRecorder(), req)

	if got[0] != userID || got[1] != "rin" || got[2] != "cat" {
		t.Fatalf("identity = %v", got)
	}
}

func TestMiddlewareAttachesIdentityFromBearer(t *testing.T) {
	a := New("test-secret")
	token, userID, _ := a.GrantSession("rin", "")

	next, got := identityEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	a.Middleware(next)(httptest.NewRecorder(), req)

	if got[0] != userID {
		t.Fatalf("identity = %v", got)
	}
}

func TestMiddlewarePassesAnonymousThrough(t *testing.T) {
	a := New("test-secret")

	next, got := identityEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	a.Middleware(next)(httptest.NewRecorder(), req)

	if got[0] != "" {
		t.Fatalf("anonymous request got identity %v", got)
	}
}

func TestMiddlewareDropsInvalidToken(t *testing.T) {
	a := New("test-secret")

	next, got := identityEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	a.Middleware(next)(httptest.NewRecorder(), req)

	if got[0] != "" {
		t.Fatalf("invalid token yielded identity %v", got)
	}
}

func TestMiddlewareStripsSpoofedIdentityHeaders(t *testing.T) {
	a := New("test-secret")

	next, got := identityEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "admin")
	req.Header.Set("X-User-Name", "root")
	a.Middleware(next)(httptest.NewRecorder(), req)

	if got[0] != "" || got[1] != "" {
		t.Fatalf("spoofed identity survived: %v", got)
	}
}
