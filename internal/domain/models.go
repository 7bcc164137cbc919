// Package domain defines the persistence models for users, roles,
// connections, messages, tasks, subscriptions, usage tracking, and feedback.
// These types are mapped with GORM and form the core data layer of the
// relay.
//
// All IDs of people are the platform-assigned 64-bit user IDs of the chat
// network; surrogate keys are sequence-generated. Timestamps are stored
// timezone-aware and always written in UTC.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Connection statuses.
const (
	ConnectionActive       = "active"
	ConnectionDisconnected = "disconnected"
)

// Task statuses. The transition pending → completed is one-way.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// Subscription statuses as persisted. Effective entitlement is derived, see
// Subscription.EntitledAt.
const (
	SubscriptionFree      = "free"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
	SubscriptionPaused    = "paused"
)

// Feedback statuses.
const (
	FeedbackUnread = "unread"
	FeedbackRead   = "read"
)

// Role names returned by the identity layer.
const (
	RoleManager = "manager"
	RoleWorker  = "worker"
	RoleNone    = ""
)

// User is the role-agnostic identity row, created on first contact.
// It is never hard-deleted while referenced by a Manager or Worker row.
type User struct {
	UserID      int64     `json:"user_id"      gorm:"primaryKey;autoIncrement:false"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(128)"`
	UILanguage  string    `json:"ui_language"  gorm:"type:varchar(64);not null;default:'English'"`
	Gender      string    `json:"gender,omitempty" gorm:"type:varchar(16)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Manager holds manager-specific data. The invitation code is unique among
// active (non-soft-deleted) managers; the partial unique index is created by
// the migration DDL, not by a tag.
type Manager struct {
	ManagerID int64          `json:"manager_id" gorm:"primaryKey;autoIncrement:false"`
	Code      string         `json:"code"       gorm:"type:varchar(16);not null;index"`
	Industry  string         `json:"industry"   gorm:"type:varchar(64);not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	User User `json:"-" gorm:"foreignKey:ManagerID;references:UserID"`
}

// TableName returns the database table name for Manager.
func (Manager) TableName() string { return "managers" }

// Worker marks a user as a worker. Soft delete mirrors Manager.
type Worker struct {
	WorkerID  int64          `json:"worker_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`

	User User `json:"-" gorm:"foreignKey:WorkerID;references:UserID"`
}

// TableName returns the database table name for Worker.
func (Worker) TableName() string { return "workers" }

// Connection is an active binding of one manager to one worker on one bot
// slot. Two partial unique indexes carry the concurrency contract:
//
//   - (manager_id, bot_slot) WHERE status = 'active'
//   - (worker_id)            WHERE status = 'active'
//
// Disconnection is an UPDATE that flips status and stamps disconnected_at;
// rows are never deleted, preserving history.
type Connection struct {
	ConnectionID   int64      `json:"connection_id" gorm:"primaryKey"`
	ManagerID      int64      `json:"manager_id"    gorm:"not null;index"`
	WorkerID       int64      `json:"worker_id"     gorm:"not null;index"`
	BotSlot        int        `json:"bot_slot"      gorm:"not null;check:bot_slot BETWEEN 1 AND 5"`
	Status         string     `json:"status"        gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','disconnected')"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`

	Manager Manager `json:"-" gorm:"foreignKey:ManagerID;references:ManagerID"`
	Worker  Worker  `json:"-" gorm:"foreignKey:WorkerID;references:WorkerID"`
}

// TableName returns the database table name for Connection.
func (Connection) TableName() string { return "connections" }

// Involves reports whether userID is one of the connection's endpoints.
func (c Connection) Involves(userID int64) bool {
	return c.ManagerID == userID || c.WorkerID == userID
}

// Counterpart returns the other endpoint of the connection for a given
// sender.
func (c Connection) Counterpart(senderID int64) int64 {
	if senderID == c.ManagerID {
		return c.WorkerID
	}
	return c.ManagerID
}

// Message is one relayed utterance. It is persisted only after translation
// succeeds and before the outbound delivery is attempted.
type Message struct {
	MessageID      int64     `json:"message_id"   gorm:"primaryKey"`
	ConnectionID   int64     `json:"connection_id" gorm:"not null;index:idx_messages_conn_sent,priority:1"`
	SenderID       int64     `json:"sender_id"    gorm:"not null"`
	OriginalText   string    `json:"original_text" gorm:"type:text;not null"`
	TranslatedText string    `json:"translated_text,omitempty" gorm:"type:text"`
	SentAt         time.Time `json:"sent_at"      gorm:"index:idx_messages_conn_sent,priority:2"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;references:ConnectionID"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Task is a manager-assigned unit of work on a connection. Completion is
// closed-loop: only the connection's worker may complete it, exactly once.
type Task struct {
	TaskID                int64      `json:"task_id"     gorm:"primaryKey"`
	ConnectionID          int64      `json:"connection_id" gorm:"not null;index"`
	Description           string     `json:"description" gorm:"type:text;not null"`
	DescriptionTranslated string     `json:"description_translated,omitempty" gorm:"type:text"`
	Status                string     `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','completed')"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;references:ConnectionID"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }

// Subscription is one row per manager, mutated exclusively by webhook
// events.
type Subscription struct {
	SubscriptionID    int64      `json:"subscription_id" gorm:"primaryKey"`
	ManagerID         int64      `json:"manager_id"      gorm:"not null;uniqueIndex"`
	ExternalID        string     `json:"external_id,omitempty" gorm:"type:varchar(64);index"`
	Status            string     `json:"status"          gorm:"type:varchar(16);not null;default:'free';check:status IN ('free','active','cancelled','expired','paused')"`
	CustomerPortalURL string     `json:"customer_portal_url,omitempty" gorm:"type:text"`
	RenewsAt          *time.Time `json:"renews_at,omitempty"`
	EndsAt            *time.Time `json:"ends_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// EntitledAt derives the effective entitlement from persisted state. It is a
// pure function of (status, ends_at, now):
//
//	active                     → entitled
//	cancelled with future end  → entitled
//	everything else            → not entitled
func (s Subscription) EntitledAt(now time.Time) bool {
	switch s.Status {
	case SubscriptionActive:
		return true
	case SubscriptionCancelled:
		return s.EndsAt != nil && now.Before(*s.EndsAt)
	default:
		return false
	}
}

// UsageTracking is the per-manager free-tier counter. messages_sent is
// monotonically non-decreasing except for an explicit reset.
type UsageTracking struct {
	ManagerID      int64      `json:"manager_id" gorm:"primaryKey;autoIncrement:false"`
	MessagesSent   int        `json:"messages_sent" gorm:"not null;default:0;check:messages_sent >= 0"`
	IsBlocked      bool       `json:"is_blocked" gorm:"not null;default:false"`
	FirstMessageAt *time.Time `json:"first_message_at,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// TableName returns the database table name for UsageTracking.
func (UsageTracking) TableName() string { return "usage_tracking" }

// Feedback is a write-only note from a user, surfaced in the read model.
type Feedback struct {
	FeedbackID  int64     `json:"feedback_id" gorm:"primaryKey"`
	UserID      int64     `json:"user_id"     gorm:"not null;index"`
	DisplayName string    `json:"display_name,omitempty" gorm:"type:varchar(128)"`
	Handle      string    `json:"handle,omitempty" gorm:"type:varchar(64)"`
	Message     string    `json:"message"     gorm:"type:text;not null"`
	Status      string    `json:"status"      gorm:"type:varchar(16);not null;default:'unread';check:status IN ('unread','read')"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
