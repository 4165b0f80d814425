package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/repository"
)

type fakeRepo struct {
	token *repository.PersonalAccessToken
	err   error
	seen  []string
}

func (f *fakeRepo) FindTokenByPlainToken(_ context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	f.seen = append(f.seen, plainToken)
	if f.token == nil && f.err == nil {
		return nil, repository.ErrTokenNotFound
	}
	return f.token, f.err
}

func TestTokenMiddleware_setsUserID(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 123}}

	got := ""
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserID(r.Context())
		require.NoError(t, err)
		got = uid
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/buyers", nil)
	req.Header.Set("Authorization", "Bearer mytoken")
	rr := httptest.NewRecorder()
	TokenMiddleware(fr, nil)(handler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "123", got)
	assert.Equal(t, []string{"mytoken"}, fr.seen)
}

func TestTokenMiddleware_queryToken(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{UserID: 5}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/import/progress?token=qs", nil)
	rr := httptest.NewRecorder()
	TokenMiddleware(fr, nil)(handler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"qs"}, fr.seen)
}

func TestTokenMiddleware_blockWhenMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with missing token")
	})

	rr := httptest.NewRecorder()
	TokenMiddleware(&fakeRepo{}, nil)(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/buyers", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTokenMiddleware_blockWhenExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeRepo{token: &repository.PersonalAccessToken{UserID: 1, ExpiresAt: &past}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with expired token")
	})

	req := httptest.NewRequest(http.MethodGet, "/buyers", nil)
	req.Header.Set("Authorization", "Bearer old")
	rr := httptest.NewRecorder()
	TokenMiddleware(fr, nil)(handler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Token expired")
}

func TestTokenMiddleware_allowsOptions(t *testing.T) {
	reached := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	TokenMiddleware(&fakeRepo{}, nil)(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, reached)
}
