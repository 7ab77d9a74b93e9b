// Package x implements OAuth 2.0 + PKCE authentication with X (Twitter).
// X's v2 API has no ID token, so a separate call to the users/me endpoint
// resolves the numeric user id after the code exchange.
package x

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/metrics"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
	"github.com/statusmvp/wallet-auth/internal/provider"
)

// Client is the X OAuth 2.0 + PKCE client.
type Client struct {
	cfg     config.XConfig
	http    *http.Client
	metrics *metrics.Recorder
}

// New creates a new X client from config. Default scopes include
// offline.access so X issues refresh tokens downstream. The metrics
// recorder may be nil.
func New(cfg config.XConfig, rec *metrics.Recorder) *Client {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"tweet.read", "users.read", "offline.access"}
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		metrics: rec,
	}
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.AuthorizeEndpoint,
			TokenURL: c.cfg.TokenEndpoint,
		},
	}
}

// AuthorizeURL builds the authorization URL with the S256 code challenge.
// The state and challenge are generated and persisted by the caller.
func (c *Client) AuthorizeURL(state, codeChallenge string) string {
	return c.oauthConfig().AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// VerifyCode exchanges the authorization code (with its PKCE verifier) and
// resolves the X user id, returning the verified identity.
func (c *Client) VerifyCode(ctx context.Context, code, codeVerifier string) (provider.Identity, error) {
	accessToken, err := c.exchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return provider.Identity{}, err
	}
	userID, err := c.fetchUserID(ctx, accessToken)
	if err != nil {
		return provider.Identity{}, err
	}
	return provider.NewIdentity(provider.X, userID), nil
}

func (c *Client) exchangeCode(ctx context.Context, code, codeVerifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauthConfig().Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		logger.From(ctx).Warn("x token exchange failed", logger.Err(err))
		c.metrics.ProviderUnavailable("x")
		return "", errs.New(errs.OAuthExchangeFailed, "x token exchange failed", http.StatusBadGateway)
	}
	if tok.AccessToken == "" {
		return "", errs.New(errs.OAuthExchangeFailed, "x token response missing access_token", http.StatusBadGateway)
	}
	return tok.AccessToken, nil
}

// userResponse is the envelope of X's GET /2/users/me.
type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

func (c *Client) fetchUserID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserinfoEndpoint, nil)
	if err != nil {
		return "", errs.New(errs.ProviderUnavailable, "x userinfo request failed", http.StatusServiceUnavailable)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.From(ctx).Warn("x userinfo request failed", logger.Err(err))
		c.metrics.ProviderUnavailable("x")
		return "", errs.New(errs.ProviderUnavailable, "x userinfo request failed", http.StatusServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.From(ctx).Warn("x userinfo non-200", logger.Int("status", resp.StatusCode))
		c.metrics.ProviderUnavailable("x")
		return "", errs.New(errs.ProviderUnavailable, fmt.Sprintf("x userinfo status %d", resp.StatusCode), http.StatusServiceUnavailable)
	}

	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", errs.New(errs.ProviderUnavailable, "x userinfo decode failed", http.StatusServiceUnavailable)
	}
	if strings.TrimSpace(ur.Data.ID) == "" {
		return "", errs.New(errs.ProviderUnavailable, "x userinfo missing user id", http.StatusServiceUnavailable)
	}
	return ur.Data.ID, nil
}

// CallbackCode extracts code/state/error from the provider redirect query.
type CallbackCode struct {
	Code    string
	State   string
	Err     string
	ErrDesc string
}

// ParseCallback reads the relevant query parameters from a callback URL query.
func ParseCallback(q url.Values) CallbackCode {
	return CallbackCode{
		Code:    q.Get("code"),
		State:   q.Get("state"),
		Err:     q.Get("error"),
		ErrDesc: q.Get("error_description"),
	}
}
