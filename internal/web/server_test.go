package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/showinghive/internal/auth"
	"github.com/evcraddock/showinghive/internal/db"
)

const testAdmin = "admin@example.com"

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default collectors in metrics output")
	}
}

func TestStaticFiles(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/static/style.css", "/static/passkey.js"} {
		r := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, _ := testServerWithDB(t)
	return srv
}

func testServerWithDB(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	srv, err := NewServer(d, Config{Auth: auth.Config{
		AdminEmail: testAdmin,
		DevMode:    true,
		BaseURL:    "http://localhost:8080",
	}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, d
}

// keyFor authorizes email with role (the admin needs no row) and returns
// a fresh API key for it.
func keyFor(t *testing.T, srv *Server, email string, role auth.Role) string {
	t.Helper()
	if email != testAdmin {
		if _, err := srv.users.Add(email, "", role); err != nil {
			t.Fatalf("add user %s: %v", email, err)
		}
	}
	raw, _, err := srv.apiKeys.Create("test", email)
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	return raw
}

// sessionCookie logs email in and returns the session cookie.
func sessionCookie(t *testing.T, srv *Server, email string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := srv.sessions.Create(w, email); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "hive_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func apiRequest(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, &reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	decodeBody(t, w, &resp)
	return resp["error"]
}

func newCookieRequest(method, path, body string, cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func serve(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}
