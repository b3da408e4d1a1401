package gbp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/review-autopublisher/internal/internaltypes"
)

func TestPutReply(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	var got replyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth, gotMethod = r.URL.Path, r.Header.Get("authorization"), r.Method
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"comment":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v4/", time.Second)
	err := c.PutReply(context.Background(), "tok", "/accounts/1/locations/2/reviews/r1", "Thank you!")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v4/accounts/1/locations/2/reviews/r1/reply", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Thank you!", got.Comment)
}

func TestPutReplyNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("try later"))
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).PutReply(context.Background(), "tok", "a/b", "hi")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "try later", apiErr.Body)
}

func TestPutReplyTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := New(srv.URL, 50*time.Millisecond).PutReply(context.Background(), "tok", "a/b", "hi")
	assert.Error(t, err)
}

func TestPutReplyEmptyTarget(t *testing.T) {
	assert.Error(t, New("http://unused", time.Second).PutReply(context.Background(), "tok", " / ", "hi"))
}

type fakeStore map[string]string

func (f fakeStore) RefreshToken(_ context.Context, tenantID string) (string, error) {
	tok, ok := f[tenantID]
	if !ok {
		return "", internaltypes.ErrNoCredential
	}
	return tok, nil
}

func TestTokenSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("refresh_token") != "good" || r.PostForm.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"ya29.abc","expires_in":3599}`))
	}))
	defer srv.Close()

	ts := &TokenSource{
		Client:       New("http://unused", time.Second),
		Store:        fakeStore{"t1": "good", "t2": "revoked"},
		TokenURL:     srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
	}

	tok, err := ts.AccessToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.abc", tok)

	_, err = ts.AccessToken(context.Background(), "t2")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid_grant")

	_, err = ts.AccessToken(context.Background(), "t3")
	assert.ErrorIs(t, err, internaltypes.ErrNoCredential)
}

func TestExchangeRefreshTokenWithoutAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	_, err := New("http://unused", time.Second).ExchangeRefreshToken(context.Background(), srv.URL, "cid", "secret", "good")
	assert.Error(t, err)
}

func TestExchangeRefreshTokenTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New("http://unused", 50*time.Millisecond).ExchangeRefreshToken(context.Background(), srv.URL, "cid", "secret", "good")
	assert.Error(t, err)
}
