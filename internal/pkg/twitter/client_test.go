package twitter

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
)

func TestClient_CreateTweet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello world", body["text"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1445880548472328192","text":"hello world"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	tweet, err := client.CreateTweet(context.Background(), "token-1", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "1445880548472328192", tweet.ID)
	assert.Equal(t, "hello world", tweet.Text)
}

func TestClient_CreateTweet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
		code   int
	}{
		{"rate limited code", http.StatusForbidden, `{"errors":[{"code":185,"message":"User is over daily status update limit."}]}`, KindRateLimited, 185},
		{"too long", http.StatusForbidden, `{"errors":[{"code":186,"message":"Tweet needs to be a bit shorter."}]}`, KindTooLong, 186},
		{"duplicate code", http.StatusForbidden, `{"errors":[{"code":187,"message":"Status is a duplicate."}]}`, KindDuplicate, 187},
		{"duplicate detail", http.StatusForbidden, `{"title":"Forbidden","detail":"You are not allowed to create a Tweet with duplicate content."}`, KindDuplicate, 0},
		{"429", http.StatusTooManyRequests, `{"title":"Too Many Requests"}`, KindRateLimited, 0},
		{"unauthorized", http.StatusUnauthorized, `{"title":"Unauthorized","detail":"Unauthorized"}`, KindAuthInvalid, 0},
		{"server error", http.StatusServiceUnavailable, `oops`, KindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, 5*time.Second).CreateTweet(context.Background(), "t", "text")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestClient_CreateTweet_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 5*time.Second).CreateTweet(context.Background(), "t", "text")
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
