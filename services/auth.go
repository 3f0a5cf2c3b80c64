package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/redwood-webops/ins-display/config"
	"github.com/redwood-webops/ins-display/models"
)

// AuthService drives the OAuth login pipeline and the token refresh
// lifecycle for the allow-listed accounts.
type AuthService struct {
	db               *gorm.DB
	client           *InstagramClient
	allowedOrigins   []string
	allowedUsernames []string
}

func NewAuthService(db *gorm.DB, client *InstagramClient, cfg config.InstagramConfig) *AuthService {
	return &AuthService{
		db:               db,
		client:           client,
		allowedOrigins:   cfg.AllowedOrigins,
		allowedUsernames: cfg.AllowedUsernames,
	}
}

// IsAllowedOrigin reports whether origin matches one of the configured
// origins by scheme and hostname equality. Substring matches do not count.
func (s *AuthService) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.allowedOrigins {
		au, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if u.Scheme == au.Scheme && u.Hostname() == au.Hostname() {
			return true
		}
	}
	return false
}

func (s *AuthService) isAllowedUsername(username string) bool {
	for _, allowed := range s.allowedUsernames {
		if username == allowed {
			return true
		}
	}
	return false
}

func callbackURI(origin string) string {
	return origin + "/login/callback"
}

// LoginURL returns the Instagram authorization URL for a login started from
// origin, or ErrOriginNotAllowed.
func (s *AuthService) LoginURL(origin string) (string, error) {
	if !s.IsAllowedOrigin(origin) {
		return "", ErrOriginNotAllowed
	}
	return s.client.AuthCodeURL(callbackURI(origin)), nil
}

// HandleCallback completes the login: it exchanges the authorization code for
// a short-lived token, resolves the account behind it, checks the username
// allow-list, upgrades to a long-lived token and replaces the Account row.
// Nothing is persisted until every upstream step has succeeded.
func (s *AuthService) HandleCallback(ctx context.Context, origin, code string) (*models.Account, error) {
	if !s.IsAllowedOrigin(origin) {
		return nil, ErrOriginNotAllowed
	}

	// Instagram appends #_ to the redirect; strip it off the code.
	code = strings.TrimSuffix(code, "#_")
	if code == "" {
		return nil, ErrMissingCode
	}

	shortLivedToken, err := s.client.ExchangeCode(ctx, code, callbackURI(origin))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamExchange, err)
	}

	profile, err := s.client.FetchProfile(ctx, shortLivedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamExchange, err)
	}

	if !s.isAllowedUsername(profile.Username) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedAccount, profile.Username)
	}

	longLivedToken, ttl, err := s.client.ExchangeLongLived(ctx, shortLivedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamExchange, err)
	}

	expiresAt := time.Now().Add(ttl)
	account := &models.Account{
		ID:                   profile.ID,
		Username:             profile.Username,
		DisplayName:          profile.Name,
		AvatarURL:            profile.ProfilePictureURL,
		FollowerCount:        profile.FollowersCount,
		MediaCount:           profile.MediaCount,
		AccessToken:          longLivedToken,
		AccessTokenExpiresAt: &expiresAt,
	}

	err = s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(account).Error
	if err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return account, nil
}

// AccountByUsername looks up an account, returning ErrNotFound when no row
// exists.
func (s *AuthService) AccountByUsername(username string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("username = ?", username).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// RefreshToken renews the account's still-valid long-lived token and stores
// the new token and expiry. On upstream failure the stored credential is left
// untouched. The fresh token is returned so callers can use it without
// re-reading storage.
func (s *AuthService) RefreshToken(ctx context.Context, account *models.Account) (string, time.Time, error) {
	token, ttl, err := s.client.RefreshAccessToken(ctx, account.AccessToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	expiresAt := time.Now().Add(ttl)
	err = s.db.Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]any{
		"access_token":            token,
		"access_token_expires_at": expiresAt,
	}).Error
	if err != nil {
		return "", time.Time{}, fmt.Errorf("save refreshed token: %w", err)
	}
	return token, expiresAt, nil
}
