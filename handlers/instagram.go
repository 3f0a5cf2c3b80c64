package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redwood-webops/ins-display/services"
)

// InstagramHandler exposes the login flow, the manual refresh triggers and
// the gallery read endpoints.
type InstagramHandler struct {
	Auth  *services.AuthService
	Sync  *services.SyncService
	Posts *services.PostService
	// TrustProxy allows the scheme to come from X-Forwarded-Proto. Leave it
	// off unless a trusted reverse proxy terminates TLS in front of the
	// service; the header is client-controlled otherwise.
	TrustProxy bool
}

// Register mounts all routes on the engine.
func (h *InstagramHandler) Register(r *gin.Engine) {
	r.GET("/login", h.Login)
	r.GET("/login/callback", h.LoginCallback)
	r.GET("/auth/refresh", h.RefreshAuth)
	r.GET("/posts/refresh", h.RefreshPosts)
	r.GET("/posts", h.GetPosts)
}

// requestOrigin reconstructs the origin the request was served on.
func (h *InstagramHandler) requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if h.TrustProxy {
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return scheme + "://" + c.Request.Host
}

// 1. Login: redirect the browser to the Instagram authorization URL
func (h *InstagramHandler) Login(c *gin.Context) {
	authURL, err := h.Auth.LoginURL(h.requestOrigin(c))
	if err != nil {
		c.String(http.StatusForbidden, "Forbidden: origin not allowed")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// 2. OAuth callback: complete the exchange pipeline, then send the browser
// back to the site root
func (h *InstagramHandler) LoginCallback(c *gin.Context) {
	origin := h.requestOrigin(c)

	_, err := h.Auth.HandleCallback(c.Request.Context(), origin, c.Query("code"))
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, origin+"/")
	case errors.Is(err, services.ErrOriginNotAllowed):
		c.String(http.StatusForbidden, "Forbidden: origin not allowed")
	case errors.Is(err, services.ErrMissingCode):
		c.String(http.StatusBadRequest, "Missing authorization code")
	case errors.Is(err, services.ErrUnauthorizedAccount):
		c.String(http.StatusForbidden, "Forbidden: %v", err)
	case errors.Is(err, services.ErrUpstreamExchange):
		c.String(http.StatusBadGateway, "%v", err)
	default:
		c.String(http.StatusInternalServerError, "Internal Server Error: %v", err)
	}
}

// 3. Manual token refresh for one account
func (h *InstagramHandler) RefreshAuth(c *gin.Context) {
	username := c.Query("user")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user parameter"})
		return
	}

	account, err := h.Auth.AccountByUsername(username)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_, expiresAt, err := h.Auth.RefreshToken(c.Request.Context(), account)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// 4. Manual post sync for one account
func (h *InstagramHandler) RefreshPosts(c *gin.Context) {
	username := c.Query("user")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user parameter"})
		return
	}

	account, err := h.Auth.AccountByUsername(username)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, err := h.Sync.SyncPosts(c.Request.Context(), account.AccessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"posts_count": count,
	})
}

// 5. Gallery read path: one post by offset when idx is given, otherwise the
// three most recent posts
func (h *InstagramHandler) GetPosts(c *gin.Context) {
	if rawIdx, ok := c.GetQuery("idx"); ok {
		idx, err := strconv.Atoi(rawIdx)
		if err != nil || idx < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid idx"})
			return
		}

		post, err := h.Posts.PostAt(idx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Out-of-range offsets are not an error; the body is JSON null.
		c.JSON(http.StatusOK, post)
		return
	}

	posts, err := h.Posts.RecentPosts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, posts)
}
