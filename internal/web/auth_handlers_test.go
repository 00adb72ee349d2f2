package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/evcraddock/showinghive/internal/auth"
)

func postForm(path string, form url.Values, cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func TestLoginPage(t *testing.T) {
	srv := testServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `action="/auth/login"`) {
		t.Error("expected login form")
	}
}

func TestLoginSubmitDoesNotRevealMembership(t *testing.T) {
	srv := testServer(t)
	keyFor(t, srv, "seller@example.com", auth.RoleSeller)

	for _, email := range []string{"seller@example.com", "stranger@example.com"} {
		w := serve(srv, postForm("/auth/login", url.Values{"email": {email}}, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", email, w.Code)
		}
		if !strings.Contains(w.Body.String(), "login link has been sent") {
			t.Errorf("%s: expected the generic confirmation", email)
		}
	}

	w := serve(srv, postForm("/auth/login", url.Values{"email": {""}}, nil))
	if !strings.Contains(w.Body.String(), "Email is required") {
		t.Error("expected missing email error")
	}
}

func TestVerifyCreatesSession(t *testing.T) {
	srv := testServer(t)
	token, err := srv.tokens.Create(testAdmin)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	w := serve(srv, httptest.NewRequest("GET", "/auth/verify?token="+token, nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("location = %q, want /", loc)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "hive_session" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected session cookie")
	}

	// Tokens are single use.
	w = serve(srv, httptest.NewRequest("GET", "/auth/verify?token="+token, nil))
	if !strings.Contains(w.Body.String(), "Invalid or expired login link") {
		t.Error("expected reused token to be rejected")
	}
}

func TestHomeRequiresSession(t *testing.T) {
	srv := testServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusSeeOther && w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("location = %q, want /login", loc)
	}
}

func TestLogout(t *testing.T) {
	srv := testServer(t)
	cookie := sessionCookie(t, srv, testAdmin)

	w := serve(srv, newCookieRequest("POST", "/auth/logout", "", cookie))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}

	w = serve(srv, newCookieRequest("GET", "/", "", cookie))
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("after logout location = %q, want /login", loc)
	}
}

func TestCLIAuthFlow(t *testing.T) {
	srv := testServer(t)
	keyFor(t, srv, "agent@example.com", auth.RoleAgent)

	w := serve(srv, httptest.NewRequest("GET", "/cli/auth", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `action="/cli/auth"`) {
		t.Fatalf("form: %d", w.Code)
	}

	w = serve(srv, httptest.NewRequest("GET", "/cli/auth/complete", nil))
	if loc := w.Header().Get("Location"); loc != "/cli/auth" {
		t.Errorf("complete without session: location = %q", loc)
	}

	token, err := srv.tokens.Create("agent@example.com")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	w = serve(srv, httptest.NewRequest("GET", "/cli/auth/verify?token="+token, nil))
	if loc := w.Header().Get("Location"); loc != "/cli/auth/complete" {
		t.Fatalf("verify: location = %q", loc)
	}

	cookie := sessionCookie(t, srv, "agent@example.com")
	w = serve(srv, newCookieRequest("GET", "/cli/auth/complete", "", cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hive_") {
		t.Error("expected a fresh API key on the page")
	}

	keys, err := srv.apiKeys.List("agent@example.com")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %d, want 2", len(keys))
	}
}
