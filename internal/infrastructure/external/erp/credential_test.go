package erp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// newERPServer simulates a Spring Security style ERP: a login POST that sets
// the session cookie on success, and a probe page that bounces
// unauthenticated requests back to the login surface.
func newERPServer(t *testing.T, validUser, validPass string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/login.htm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost &&
			r.FormValue("j_username") == validUser &&
			r.FormValue("j_password") == validPass {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-ok", Path: "/"})
		}
		w.Write([]byte("<html>login</html>"))
	})

	mux.HandleFunc("/studentHome.htm", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "session-ok" {
			http.Redirect(w, r, "/login.htm?authfailed=true", http.StatusFound)
			return
		}
		w.Write([]byte("<html>home</html>"))
	})

	return httptest.NewServer(mux)
}

func TestCredentialAcquirer_HappyPath(t *testing.T) {
	srv := newERPServer(t, "student", "secret")
	defer srv.Close()

	a := NewCredentialAcquirer(DefaultConfig(srv.URL))
	session, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.NoError(t, err)
	assert.NotEmpty(t, session.Cookies)
	assert.False(t, session.HasPayload())

	found := false
	for _, c := range session.Cookies {
		if c.Name == "JSESSIONID" {
			found = true
		}
	}
	assert.True(t, found, "session cookie should be harvested from the jar")
}

func TestCredentialAcquirer_WrongPassword(t *testing.T) {
	srv := newERPServer(t, "student", "secret")
	defer srv.Close()

	a := NewCredentialAcquirer(DefaultConfig(srv.URL))
	_, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "wrong"})

	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, shared.IsAuthError(err))
}

func TestCredentialAcquirer_EmptyCredentials(t *testing.T) {
	a := NewCredentialAcquirer(DefaultConfig("https://erp.example.edu"))

	_, err := a.Acquire(context.Background(), Credentials{Username: "student"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = a.Acquire(context.Background(), Credentials{Password: "secret"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCredentialAcquirer_UnreachableERP(t *testing.T) {
	cfg := DefaultConfig("http://127.0.0.1:1")

	a := NewCredentialAcquirer(cfg)
	_, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.Error(t, err)
	assert.True(t, shared.IsAuthError(err))
}

func TestCredentialAcquirer_CustomFieldNames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login.htm", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") == "student" && r.FormValue("pwd") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "ok", Path: "/"})
		}
	})
	mux.HandleFunc("/studentHome.htm", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login.htm", http.StatusFound)
			return
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.UsernameField = "username"
	cfg.PasswordField = "pwd"

	a := NewCredentialAcquirer(cfg)
	session, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.NoError(t, err)
	assert.NotEmpty(t, session.Cookies)
}
