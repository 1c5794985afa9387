// Package models holds the persistent and in-memory data types shared
// across the session hub's components.
package models

import "time"

// Role is a total order: Guest < User < Moderator < Admin < Owner.
type Role int

const (
	RoleGuest Role = iota
	RoleUser
	RoleModerator
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// MessageKind discriminates the unified messages table.
type MessageKind string

const (
	MessageKindRoom   MessageKind = "room"
	MessageKindDirect MessageKind = "direct"
	MessageKindSystem MessageKind = "system"
)

// MessageStatus tracks the lifecycle of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusEdited    MessageStatus = "edited"
	StatusDeleted   MessageStatus = "deleted"
)

// Attachment is metadata-only: the hub never reads or writes the bytes it
// describes, per the "media attachment storage... only metadata is
// modeled" non-goal.
type Attachment struct {
	ID               int64     `json:"id"`
	MessageID        int64     `json:"message_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	URL              string    `json:"url"`
	ThumbnailURL     string    `json:"thumbnail_url,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Message is the unified record backing both room broadcasts and direct
// messages.
type Message struct {
	ID              int64             `json:"id"`
	Kind            MessageKind       `json:"kind"`
	Content         string            `json:"content"`
	AuthorID        int64             `json:"author_id"`
	AuthorUsername  string            `json:"author_username"`
	RoomName        string            `json:"room_name,omitempty"`
	RecipientID     int64             `json:"recipient_id,omitempty"`
	ParentID        int64             `json:"parent_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
	Status          MessageStatus     `json:"status"`
	IsPinned        bool              `json:"is_pinned"`
	IsEdited        bool              `json:"is_edited"`
	OriginalContent string            `json:"original_content,omitempty"`
	ThreadCount     int               `json:"thread_count"`
	IsFlagged       bool              `json:"is_flagged"`
	ModerationNotes string            `json:"moderation_notes,omitempty"`
	Reactions       map[string][]int64 `json:"reactions,omitempty"`
	Mentions        []int64           `json:"mentions,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
}

// ReactionUser pairs a user id with the display name attached at react time.
type ReactionUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// ReactionSummary is the hydrated view of every reaction on one message.
type ReactionSummary struct {
	MessageID  int64                     `json:"message_id"`
	Reactions  map[string][]ReactionUser `json:"reactions"`
	TotalCount int                       `json:"total_count"`
}

// ModerationAction names the kinds of audited moderator activity.
type ModerationAction string

const (
	ModerationPin    ModerationAction = "pin"
	ModerationUnpin  ModerationAction = "unpin"
	ModerationDelete ModerationAction = "delete"
	ModerationFlag   ModerationAction = "flag"
)

// ModerationLogEntry is one immutable audit row (C12).
type ModerationLogEntry struct {
	ID        int64            `json:"id"`
	MessageID int64            `json:"message_id"`
	RoomName  string           `json:"room_name,omitempty"`
	ActorID   int64            `json:"actor_id"`
	Action    ModerationAction `json:"action"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// DMConversation is one row of a user's direct-message inbox summary.
type DMConversation struct {
	OtherUserID         int64     `json:"other_user_id"`
	OtherUsername       string    `json:"other_username"`
	LastMessageAt       time.Time `json:"last_message_at"`
	UnreadCount         int       `json:"unread_count"`
	LastMessagePreview  string    `json:"last_message_preview"`
}

// TopRoom and TopUser back the Message Analytics snapshot (C15).
type TopRoom struct {
	RoomName string `json:"room_name"`
	Count    int64  `json:"count"`
}

type TopUser struct {
	UserID int64 `json:"user_id"`
	Count  int64 `json:"count"`
}

// MessageStats is the read-only analytics snapshot.
type MessageStats struct {
	TotalMessages    int64     `json:"total_messages"`
	RoomMessages     int64     `json:"room_messages"`
	DirectMessages   int64     `json:"direct_messages"`
	MessagesToday    int64     `json:"messages_today"`
	MessagesThisWeek int64     `json:"messages_this_week"`
	TopRooms         []TopRoom `json:"top_rooms"`
	TopActiveUsers   []TopUser `json:"top_active_users"`
}

// PresenceStatus models the C8 state machine.
type PresenceStatus string

const (
	PresenceOffline PresenceStatus = "offline"
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
)

// Presence is the cached state one user's session advertises.
type Presence struct {
	UserID      int64          `json:"user_id"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"last_seen"`
	CurrentRoom string         `json:"current_room,omitempty"`
}

// HubStats mirrors C11's monotonic counters and the active-connection gauge.
type HubStats struct {
	UptimeStart       time.Time `json:"uptime_start"`
	TotalConnections  uint64    `json:"total_connections"`
	ActiveConnections uint64    `json:"active_connections"`
	TotalMessages     uint64    `json:"total_messages"`
	TotalRoomsCreated uint64    `json:"total_rooms_created"`
}

func (s HubStats) Uptime() time.Duration {
	if s.UptimeStart.IsZero() {
		return 0
	}
	return time.Since(s.UptimeStart)
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionTokenState is the per-user Session Token State of §3: a hashed
// bearer token plus the bookkeeping needed to enforce a concurrent-session
// cap and an absolute session lifetime (C13).
type SessionTokenState struct {
	UserID       int64     `json:"user_id"`
	HashedToken  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	SourceAddr   string    `json:"source_addr"`
}
