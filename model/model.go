// Package model defines the typed JSON projections shared across handlers.
// Sensitive user fields (password hash, refresh token) have no place in any
// of these shapes.
package model

// OwnerSummary is the embedded user shape attached to videos, comments and
// playlists.
type OwnerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatarUrl"`
}

// User is the client-facing account shape.
type User struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	FullName   string  `json:"fullName"`
	Avatar     string  `json:"avatarUrl"`
	CoverImage *string `json:"coverImageUrl"`
	CreatedAt  string  `json:"createdAt"`
}

// Video is the client-facing video shape. Owner is populated on joined
// read views and omitted elsewhere.
type Video struct {
	ID              string        `json:"id"`
	FileURL         string        `json:"fileUrl"`
	ThumbnailURL    string        `json:"thumbnailUrl"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	DurationSeconds float64       `json:"durationSeconds"`
	ViewCount       int64         `json:"viewCount"`
	IsPublic        bool          `json:"isPublic"`
	LikesCount      int64         `json:"likesCount"`
	CreatedAt       string        `json:"createdAt"`
	Owner           *OwnerSummary `json:"owner,omitempty"`
}

// Comment is the client-facing comment shape.
type Comment struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	VideoID    string        `json:"videoId"`
	LikesCount int64         `json:"likesCount"`
	CreatedAt  string        `json:"createdAt"`
	Owner      *OwnerSummary `json:"owner,omitempty"`
}

// Tweet is the client-facing tweet shape.
type Tweet struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	LikesCount int64         `json:"likesCount"`
	CreatedAt  string        `json:"createdAt"`
	Owner      *OwnerSummary `json:"owner,omitempty"`
}

// Playlist is the client-facing playlist shape. Videos is populated on the
// single-playlist view; VideoCount on listings.
type Playlist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	VideoCount  int           `json:"videoCount"`
	CreatedAt   string        `json:"createdAt"`
	UpdatedAt   string        `json:"updatedAt"`
	Owner       *OwnerSummary `json:"owner,omitempty"`
	Videos      []Video       `json:"videos,omitempty"`
}

// ChannelProfile is the channel page view: a public user plus subscription
// counts and the viewer's membership flag.
type ChannelProfile struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	FullName        string  `json:"fullName"`
	Avatar          string  `json:"avatarUrl"`
	CoverImage      *string `json:"coverImageUrl"`
	SubscriberCount int64   `json:"subscriberCount"`
	SubscribedTo    int64   `json:"subscribedToCount"`
	IsSubscribed    bool    `json:"isSubscribed"`
	CreatedAt       string  `json:"createdAt"`
}

// WatchEntry is one row of the paginated watch history.
type WatchEntry struct {
	Video     Video  `json:"video"`
	WatchedAt string `json:"watchedAt"`
}

// Page wraps a paginated listing.
type Page struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
}
