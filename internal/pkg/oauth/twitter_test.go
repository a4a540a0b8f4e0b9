package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewTwitterOAuth(t *testing.T) {
	o := NewTwitterOAuth("client-id", "client-secret", "http://localhost/callback", "")

	assert.Equal(t, "client-id", o.config.ClientID)
	assert.Equal(t, "http://localhost/callback", o.config.RedirectURL)
	assert.Contains(t, o.config.Scopes, "tweet.write")
	assert.Contains(t, o.config.Scopes, "offline.access")
	assert.Equal(t, defaultTwitterAPIBaseURL, o.apiBaseURL)
}

func TestTwitterOAuth_GetAuthURL(t *testing.T) {
	o := NewTwitterOAuth("test-client-id", "secret", "http://example.com/callback", "")

	raw := o.GetAuthURL("test-state", oauth2.GenerateVerifier())
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "twitter.com", u.Host)
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "test-state", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
}

func TestTwitterOAuth_GetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/me", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": TwitterUser{
				ID:              "555",
				Name:            "Mock User",
				Username:        "mockuser",
				ProfileImageURL: "https://mock.avatar.url",
			},
		})
	}))
	defer server.Close()

	o := NewTwitterOAuth("id", "secret", "http://localhost/callback", server.URL)

	user, err := o.GetUser(context.Background(), &oauth2.Token{AccessToken: "test-token"})
	require.NoError(t, err)
	assert.Equal(t, "555", user.ID)
	assert.Equal(t, "mockuser", user.Username)
	assert.Equal(t, "https://mock.avatar.url", user.ProfileImageURL)
}

func TestTwitterOAuth_GetUser_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer server.Close()

	o := NewTwitterOAuth("id", "secret", "http://localhost/callback", server.URL)

	_, err := o.GetUser(context.Background(), &oauth2.Token{AccessToken: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestTwitterOAuth_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":7200}`))
	}))
	defer server.Close()

	o := NewTwitterOAuth("id", "secret", "http://localhost/callback", server.URL)

	token, err := o.Exchange(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.True(t, token.Valid())
}
