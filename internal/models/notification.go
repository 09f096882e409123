package models

import (
	"time"
)

// Recipient types
const (
	RecipientTypeRole = "role"
	RecipientTypeUser = "user"
)

// Notification priorities
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// ContextTypeSystemAlert marks notifications raised for a SystemAlert
const ContextTypeSystemAlert = "system_alert"

// NotificationPayload is handed to the dispatcher once per recipient
type NotificationPayload struct {
	Title         string `json:"title"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	Priority      string `json:"priority"`
	RecipientType string `json:"recipient_type"`
	RecipientID   int64  `json:"recipient_id"`
	ContextType   string `json:"context_type"`
	ContextID     string `json:"context_id"`
	Sound         bool   `json:"sound"`
	Icon          string `json:"icon"`
}

// Notification is a persisted in-app notification
type Notification struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Message       string     `json:"message" db:"message"`
	Type          string     `json:"type" db:"type"`
	Priority      string     `json:"priority" db:"priority"`
	RecipientType string     `json:"recipient_type" db:"recipient_type"`
	RecipientID   int64      `json:"recipient_id" db:"recipient_id"`
	ContextType   string     `json:"context_type" db:"context_type"`
	ContextID     string     `json:"context_id" db:"context_id"`
	Sound         bool       `json:"sound" db:"sound"`
	Icon          string     `json:"icon" db:"icon"`
	Status        string     `json:"status" db:"status"` // pending, sent, failed
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	Error         *string    `json:"error,omitempty" db:"error"`
}

// NewNotification converts a payload into a pending inbox row.
func NewNotification(id string, payload *NotificationPayload) *Notification {
	return &Notification{
		ID:            id,
		Title:         payload.Title,
		Message:       payload.Message,
		Type:          payload.Type,
		Priority:      payload.Priority,
		RecipientType: payload.RecipientType,
		RecipientID:   payload.RecipientID,
		ContextType:   payload.ContextType,
		ContextID:     payload.ContextID,
		Sound:         payload.Sound,
		Icon:          payload.Icon,
		Status:        "pending",
		CreatedAt:     time.Now(),
	}
}
