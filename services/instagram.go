package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/redwood-webops/ins-display/config"
)

// InstagramClient talks to the Instagram endpoints: the OAuth authorize/token
// pair and the Graph API (profile, token exchange/refresh, media listing).
// All endpoint URLs come from config so tests can point it at a fake server.
type InstagramClient struct {
	cfg  config.InstagramConfig
	http *http.Client
}

func NewInstagramClient(cfg config.InstagramConfig) *InstagramClient {
	return &InstagramClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *InstagramClient) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the Instagram authorization URL for the business login
// flow. force_reauth makes Instagram show the login dialog even when a
// session exists, so the right account can be picked.
func (c *InstagramClient) AuthCodeURL(redirectURI string) string {
	return c.oauthConfig(redirectURI).AuthCodeURL("",
		oauth2.SetAuthURLParam("force_reauth", "true"))
}

// ExchangeCode trades an authorization code for a short-lived access token.
func (c *InstagramClient) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	token, err := c.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code for token: %w", err)
	}
	return token.AccessToken, nil
}

// Profile is the account snapshot returned by the Graph API /me endpoint.
type Profile struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int    `json:"followers_count"`
	MediaCount        int    `json:"media_count"`
}

const profileFields = "user_id,name,username,profile_picture_url,followers_count,media_count"

// FetchProfile resolves the authenticated account behind an access token.
func (c *InstagramClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	query := url.Values{}
	query.Set("fields", profileFields)
	query.Set("access_token", accessToken)

	var profile Profile
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/me?"+query.Encode(), &profile); err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	if profile.ID == "" {
		profile.ID = profile.UserID
	}
	return &profile, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLived trades a short-lived token for a long-lived one and
// returns the token with its time-to-live.
func (c *InstagramClient) ExchangeLongLived(ctx context.Context, shortLivedToken string) (string, time.Duration, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_exchange_token")
	query.Set("client_secret", c.cfg.ClientSecret)
	query.Set("access_token", shortLivedToken)

	var resp tokenResponse
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/access_token?"+query.Encode(), &resp); err != nil {
		return "", 0, fmt.Errorf("exchange for long-lived token: %w", err)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// RefreshAccessToken renews a still-valid long-lived token. The upstream
// protocol cannot refresh an already-expired token, so callers must invoke
// this before expiry.
func (c *InstagramClient) RefreshAccessToken(ctx context.Context, accessToken string) (string, time.Duration, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", accessToken)

	var resp tokenResponse
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/refresh_access_token?"+query.Encode(), &resp); err != nil {
		return "", 0, fmt.Errorf("refresh token: %w", err)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// MediaItem is one media entry from the Graph API listing, optionally with
// its carousel children nested under children.data.
type MediaItem struct {
	ID        string  `json:"id"`
	Caption   *string `json:"caption"`
	MediaType string  `json:"media_type"`
	MediaURL  *string `json:"media_url"`
	Permalink *string `json:"permalink"`
	Timestamp string  `json:"timestamp"`
	Children  *struct {
		Data []MediaChild `json:"data"`
	} `json:"children,omitempty"`
}

type MediaChild struct {
	ID        string  `json:"id"`
	MediaType string  `json:"media_type"`
	MediaURL  *string `json:"media_url"`
	Permalink *string `json:"permalink"`
	Timestamp string  `json:"timestamp"`
}

const mediaFields = "id,caption,media_type,media_url,permalink,timestamp," +
	"children{id,media_type,media_url,permalink,timestamp}"

// FetchRecentMedia lists the account's most recent media, newest first.
func (c *InstagramClient) FetchRecentMedia(ctx context.Context, accessToken string, limit int) ([]MediaItem, error) {
	query := url.Values{}
	query.Set("fields", mediaFields)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("access_token", accessToken)

	var resp struct {
		Data []MediaItem `json:"data"`
	}
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/me/media?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	return resp.Data, nil
}

func (c *InstagramClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
