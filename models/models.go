// ringside/models/models.go
package models

import (
	"database/sql"
	"time"
)

// --- Core Data Models ---

// BoardAccess is a board's access class, controlling who may write to it.
type BoardAccess string

const (
	AccessPublic    BoardAccess = "public"
	AccessAnonymous BoardAccess = "anonymous"
	AccessVIPYellow BoardAccess = "vip_yellow"
	AccessVIPBlue   BoardAccess = "vip_blue"
)

type Board struct {
	ID        int64
	Route     string
	Name      string
	Access    BoardAccess
	SortOrder int
}

type User struct {
	ID        int64
	Username  string
	Email     string
	Nickname  string
	Password  string // bcrypt hash
	IsAdmin   bool
	VIPTier   int
	CreatedAt time.Time
	LastLogin sql.NullTime
}

// AnonymousNickname is the display label for all anonymous content,
// regardless of who submitted it.
const AnonymousNickname = "anonymous"

type Post struct {
	ID                int64
	BoardID           int64
	UserID            int64
	Title             string
	Content           string
	ImagesData        string // JSON: list of stored image paths
	VideoData         string // JSON: list of embed URLs
	ViewCount         int
	IsAnonymous       bool
	IPAddress         sql.NullString
	AnonymousPassword sql.NullString // bcrypt hash, anonymous posts only
	CreatedAt         time.Time
	UpdatedAt         sql.NullTime

	// Joined fields
	Nickname     string
	AuthorVIP    int
	BoardRoute   string
	BoardName    string
	CommentCount int
	LikeCount    int
}

type Comment struct {
	ID                int64
	PostID            int64
	UserID            int64
	Content           string
	IsAnonymous       bool
	IPAddress         sql.NullString
	AnonymousPassword sql.NullString
	CreatedAt         time.Time

	Nickname  string
	AuthorVIP int
}

type Message struct {
	ID              int64
	SenderID        int64
	ReceiverID      int64
	Title           string
	Content         string
	IsRead          bool
	SenderDeleted   bool
	ReceiverDeleted bool
	CreatedAt       time.Time

	SenderNickname   string
	ReceiverNickname string
}

// FriendshipStatus is the state of a directed friendship edge.
type FriendshipStatus string

const (
	FriendPending  FriendshipStatus = "pending"
	FriendAccepted FriendshipStatus = "accepted"
	FriendRejected FriendshipStatus = "rejected"
	FriendBlocked  FriendshipStatus = "blocked"
)

type Friendship struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendshipStatus
	CreatedAt time.Time
	UpdatedAt sql.NullTime

	FriendNickname string
}

// --- Moderation & System Models ---

type BlockedIP struct {
	ID        int64
	IPAddress string
	Reason    sql.NullString
	CreatedAt time.Time
	ExpiresAt sql.NullTime
}

type BlockedUser struct {
	ID        int64
	UserID    int64
	Reason    sql.NullString
	CreatedAt time.Time
	ExpiresAt sql.NullTime

	Nickname string
}

type Ad struct {
	ID        int64
	Position  string // banner, side, footer, center
	ImagePath string
	LinkURL   string
	IsActive  bool
	CreatedAt time.Time
}

type Notice struct {
	ID        int64
	UserID    int64
	Title     string
	Content   string
	IsActive  bool
	CreatedAt time.Time

	Nickname string
}

type ResetToken struct {
	ID        int64
	UserID    int64
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// --- Form helpers ---

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Nickname        string
}
