package types

import (
	"time"

	"github.com/google/uuid"
)

// NotificationEvent enumerates the push/in-app event types the dispatcher
// knows how to render.
type NotificationEvent string

const (
	EventOutbid          NotificationEvent = "outbid"
	EventNewBid          NotificationEvent = "new_bid"
	EventAuctionEnding   NotificationEvent = "auction_ending"
	EventAuctionWon      NotificationEvent = "auction_won"
	EventProductApproved NotificationEvent = "product_approved"
	EventProductRejected NotificationEvent = "product_rejected"
)

// Notification is one row of the append-only in-app notification log.
// Only the read flag is ever mutated, and only by the owner.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      NotificationEvent `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

// PushToken maps a user to one delivery token; users keep one row per device.
type PushToken struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
