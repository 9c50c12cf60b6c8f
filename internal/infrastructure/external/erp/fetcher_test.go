package erp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

func cookieSession() *Session {
	return &Session{Cookies: []*http.Cookie{{Name: "JSESSIONID", Value: "abc123"}}}
}

func TestFetcher_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stu_getSubjectOnChangeWithSemId1.json", r.URL.Path)
		c, err := r.Cookie("JSESSIONID")
		assert.NoError(t, err)
		assert.Equal(t, "abc123", c.Value)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"subject":"Mathematics","presentCount":26,"absentCount":14},
			{"subject":"Physics","presentCount":"30","absentCount":"2"}
		]`))
	}))
	defer srv.Close()

	f := NewFetcher(DefaultConfig(srv.URL))
	records, err := f.Fetch(context.Background(), cookieSession())

	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "Mathematics", records[0]["subject"])
}

func TestFetcher_ShortCircuitsOnPayloadSession(t *testing.T) {
	// No server at all: a payload-carrying session must never hit the network.
	f := NewFetcher(DefaultConfig("http://127.0.0.1:1"))
	session := &Session{Payload: []RawRecord{{"subject": "Chemistry"}}}

	records, err := f.Fetch(context.Background(), session)

	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetcher_Non200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(DefaultConfig(srv.URL))
	_, err := f.Fetch(context.Background(), cookieSession())

	assert.ErrorIs(t, err, shared.ErrHTTPStatus)

	var statusErr *shared.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.True(t, shared.IsRetryable(err))
}

func TestFetcher_HTMLResponseIsNotJSONArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Expired sessions get the login page with a 200.
		w.Write([]byte("<html>please log in</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(DefaultConfig(srv.URL))
	_, err := f.Fetch(context.Background(), cookieSession())

	assert.ErrorIs(t, err, shared.ErrNotJSONArray)
	assert.False(t, shared.IsRetryable(err))
}

func TestFetcher_EmptySession(t *testing.T) {
	f := NewFetcher(DefaultConfig("https://erp.example.edu"))
	_, err := f.Fetch(context.Background(), &Session{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFetcher_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(DefaultConfig(srv.URL))
	for i := 0; i < 5; i++ {
		_, err := f.Fetch(context.Background(), cookieSession())
		assert.ErrorIs(t, err, shared.ErrHTTPStatus)
	}

	// Threshold reached: the next call fails fast without a round trip.
	_, err := f.Fetch(context.Background(), cookieSession())
	assert.ErrorIs(t, err, shared.ErrFetchTimeout)
}
