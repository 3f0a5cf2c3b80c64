package models

import (
	"time"
)

// Media types as reported by the Instagram Graph API.
const (
	MediaTypeImage    = "IMAGE"
	MediaTypeVideo    = "VIDEO"
	MediaTypeCarousel = "CAROUSEL_ALBUM"
)

// Post roles. Top-level posts are the ones selected for display; child posts
// are carousel members and never appear as top-level results.
const (
	RoleTopLevel = "top"
	RoleChild    = "child"
)

// Account is the profile snapshot plus the current long-lived access token
// for one allow-listed Instagram account. The whole row is replaced on every
// successful login; the refresh job only touches the token columns.
type Account struct {
	ID                   string     `gorm:"primaryKey" json:"id"`
	Username             string     `gorm:"index" json:"username"`
	DisplayName          string     `json:"display_name"`
	AvatarURL            string     `json:"avatar_url"`
	FollowerCount        int        `json:"follower_count"`
	MediaCount           int        `json:"media_count"`
	AccessToken          string     `json:"-"`
	AccessTokenExpiresAt *time.Time `json:"-"`
}

// Post is one unit of media, either a top-level post or a carousel child.
// Child rows always carry a NULL caption; the carousel's caption lives on the
// parent only.
type Post struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	Caption   *string `json:"caption"`
	Role      string  `gorm:"index;not null" json:"-"`
	MediaType string  `json:"media_type"`
	MediaURL  *string `json:"media_url"`
	Permalink *string `json:"permalink"`
	// ISO 8601; lexicographic order matches chronological order.
	Timestamp string `gorm:"index" json:"timestamp"`
}

// PostChild links a carousel parent to one of its children. Rows are
// insert-if-absent and never updated.
type PostChild struct {
	ParentID string `gorm:"primaryKey"`
	ChildID  string `gorm:"primaryKey"`
}

// AssembledPost is the API response shape: a post with its carousel children
// attached. Never persisted.
type AssembledPost struct {
	Post
	Children []Post `json:"children,omitempty"`
}
