// Package domain defines the persistence models for customers, chat sessions,
// messages, recipes, payment transactions, and feedback. These types are plain
// records mapped with GORM; behavior lives in the repo and services packages.
package domain

import (
	"time"
)

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// DefaultSessionTitle is the placeholder title of a fresh session. Sessions
// keep receiving generated titles while they still carry it.
const DefaultSessionTitle = "New Chat"

// ChatSession is a conversation owned by a single customer.
//
// Fields:
//   - ID: storage primary key (char(36)), never exposed over the API.
//   - SessionID: public identifier, unique and distinct from ID.
//   - CustomerID: owner; sessions never cascade into the customer.
//   - Title: "New Chat" until generated from extracted terms or renamed.
//   - TitleLocked: set once the customer renames the session explicitly.
//   - Keywords / FoodNames: derived from user-authored messages.
//   - MessageCount: always equal to the number of stored messages.
//   - LastMessageAt: timestamp of the latest message, non-decreasing.
type ChatSession struct {
	ID            string    `json:"-"               gorm:"type:char(36);primaryKey"`
	SessionID     string    `json:"session_id"      gorm:"type:char(36);not null;uniqueIndex"`
	CustomerID    string    `json:"customer_id"     gorm:"type:char(36);not null;index:idx_customer_sessions,priority:1"`
	Title         string    `json:"title"           gorm:"type:varchar(255);not null"`
	TitleLocked   bool      `json:"title_locked"    gorm:"not null;default:false"`
	Keywords      []string  `json:"keywords"        gorm:"type:text;serializer:json"`
	FoodNames     []string  `json:"food_names"      gorm:"type:text;serializer:json"`
	MessageCount  int       `json:"message_count"   gorm:"not null;default:0"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"not null;index:idx_customer_sessions,priority:2"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// Message is one entry of a session's append-only log.
//
// AI messages that carry canned fallback text instead of model output have
// Fallback set. RecipeID links a generated recipe when RecipeGenerated is true.
type Message struct {
	ID              string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	ChatSessionID   string    `json:"-"                   gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Sender          string    `json:"sender"              gorm:"type:varchar(8);not null;check:sender IN ('user','ai')"`
	Text            string    `json:"text"                gorm:"type:text;not null"`
	RecipeGenerated bool      `json:"recipe_generated"    gorm:"not null;default:false"`
	RecipeID        *string   `json:"recipe_id,omitempty" gorm:"type:char(36)"`
	Fallback        bool      `json:"fallback"            gorm:"not null;default:false"`
	Model           string    `json:"model,omitempty"     gorm:"type:varchar(64)"`
	TokensUsed      int       `json:"tokens_used,omitempty"`
	Seq             int       `json:"-"                   gorm:"not null;default:0;index:idx_session_msgs,priority:2"`
	CreatedAt       time.Time `json:"created_at"`

	ChatSession ChatSession `json:"-" gorm:"foreignKey:ChatSessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback is a customer's rating of an AI message. One entry per
// (message, customer), enforced by a unique index.
type Feedback struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	MessageID  string    `json:"message_id"  gorm:"type:char(36);not null;uniqueIndex:ux_feedback_message_customer"`
	CustomerID string    `json:"customer_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_customer"`
	Value      int       `json:"value"       gorm:"not null;check:value IN (-1,1)"`
	CreatedAt  time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

// Recipe is a complete recipe produced by the assistant for a customer.
type Recipe struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	CustomerID  string    `json:"customer_id" gorm:"type:char(36);not null;index"`
	Title       string    `json:"title"       gorm:"type:varchar(255);not null"`
	Body        string    `json:"body"        gorm:"type:text;not null"`
	Ingredients []string  `json:"ingredients" gorm:"type:text;serializer:json"`
	Model       string    `json:"model"       gorm:"type:varchar(64)"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }
