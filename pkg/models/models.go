package models

import "time"

const (
	RoleCreator = "creator"
	RoleViewer  = "viewer"

	PrivacyPublic         = "public"
	PrivacySubscriberOnly = "subscriber_only"
)

// users table
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	Bio          string    `db:"bio" json:"bio"`
	IsActive     bool      `db:"is_active" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

func (u User) IsCreator() bool { return u.Role == RoleCreator }

// Profile is the caller's own account with its counters.
type Profile struct {
	User
	FollowerCount int64 `json:"followerCount"`
	VideoCount    int64 `json:"videoCount"`
}

// PublicProfile is what anyone may see about a user.
type PublicProfile struct {
	ID              int64     `db:"id" json:"id"`
	Username        string    `db:"username" json:"username"`
	DisplayName     string    `db:"display_name" json:"displayName"`
	Bio             string    `db:"bio" json:"bio"`
	Role            string    `db:"role" json:"role"`
	JoinDate        time.Time `db:"created_at" json:"joinDate"`
	VideoCount      int64     `db:"video_count" json:"videoCount"`
	SubscriberCount int64     `db:"subscriber_count" json:"subscriberCount"`
}

// Connection is one side of a follow edge, e.g. a followed creator or a subscriber.
type Connection struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Role        string    `db:"role" json:"role"`
	Since       time.Time `db:"since" json:"since"`
}

// videos table joined with its creator
type Video struct {
	ID                 int64     `db:"id" json:"id"`
	CreatorID          int64     `db:"creator_id" json:"creatorId"`
	CreatorUsername    string    `db:"creator_username" json:"creatorUsername"`
	CreatorDisplayName string    `db:"creator_display_name" json:"creatorDisplayName"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	Filename           string    `db:"filename" json:"filename"`
	FileSize           int64     `db:"file_size" json:"fileSize"`
	MimeType           string    `db:"mime_type" json:"mimeType"`
	Checksum           string    `db:"checksum" json:"checksum"`
	Privacy            string    `db:"privacy" json:"privacy"`
	ViewCount          int64     `db:"view_count" json:"viewCount"`
	LikeCount          int64     `db:"like_count" json:"likeCount"`
	Tags               string    `db:"tags" json:"tags"`
	UploadDate         time.Time `db:"upload_date" json:"uploadDate"`

	// only set when the request carries an identity
	UserLiked *bool `db:"-" json:"userLiked,omitempty"`
}

// VideoDetail is a single fetched video with the viewer's relation to its creator.
type VideoDetail struct {
	Video
	UserFollowing    *bool `json:"userFollowing,omitempty"`
	CreatorFollowers int64 `json:"creatorFollowers"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type VideoPage struct {
	Videos     []Video    `json:"videos"`
	Pagination Pagination `json:"pagination"`
}

type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type FollowResult struct {
	Following     bool  `json:"following"`
	FollowerCount int64 `json:"followerCount"`
}
