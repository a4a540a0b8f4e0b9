package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const defaultTwitterAPIBaseURL = "https://api.twitter.com"

// TwitterEndpoint is the OAuth 2.0 endpoint of the social network.
var TwitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// TwitterScopes are requested on sign-in; offline.access yields a refresh token.
var TwitterScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

type TwitterUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

type TwitterOAuth struct {
	config     *oauth2.Config
	apiBaseURL string
}

func NewTwitterOAuth(clientID, clientSecret, redirectURI, apiBaseURL string) *TwitterOAuth {
	endpoint := TwitterEndpoint
	if apiBaseURL == "" {
		apiBaseURL = defaultTwitterAPIBaseURL
	}
	apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	// token 接口和 API 同域
	endpoint.TokenURL = apiBaseURL + "/2/oauth2/token"

	return &TwitterOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       TwitterScopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
	}
}

// GetAuthURL builds the authorization URL with a PKCE S256 challenge.
func (t *TwitterOAuth) GetAuthURL(state, verifier string) string {
	return t.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the authorization code for a token.
func (t *TwitterOAuth) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return t.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

// TokenSource returns a source that refreshes token when it expires.
func (t *TwitterOAuth) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return t.config.TokenSource(ctx, token)
}

// GetUser fetches the authenticated account.
func (t *TwitterOAuth) GetUser(ctx context.Context, token *oauth2.Token) (*TwitterUser, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.apiBaseURL+"/2/users/me?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("twitter api error: status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data TwitterUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if payload.Data.ID == "" {
		return nil, fmt.Errorf("twitter api returned no user id")
	}

	return &payload.Data, nil
}
