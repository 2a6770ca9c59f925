package types

import (
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductPending  ProductStatus = "pending"
	ProductApproved ProductStatus = "approved"
	ProductRejected ProductStatus = "rejected"
	ProductSold     ProductStatus = "sold"
)

// Product is an auction lot. Status transitions are monotonic:
// pending -> approved | rejected, approved -> sold exactly once.
// CurrentPrice >= StartingPrice always; HighestBidderID is set iff
// CurrentPrice > StartingPrice.
type Product struct {
	ID              uuid.UUID     `json:"id"`
	SellerID        uuid.UUID     `json:"seller_id"`
	Title           string        `json:"title"`
	Description     *string       `json:"description,omitempty"`
	ImageURL        *string       `json:"image_url,omitempty"`
	CategoryID      *uuid.UUID    `json:"category_id,omitempty"`
	StartingPrice   float64       `json:"starting_price"`
	CurrentPrice    float64       `json:"current_price"`
	HighestBidderID *uuid.UUID    `json:"highest_bidder_id,omitempty"`
	Status          ProductStatus `json:"status"`
	AuctionEndTime  time.Time     `json:"auction_end_time"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ProductDetail is the public read shape with joined names and derived
// auction state.
type ProductDetail struct {
	Product
	SellerName        *string  `json:"seller_name,omitempty"`
	CategoryName      *string  `json:"category_name,omitempty"`
	HighestBidderName *string  `json:"highest_bidder_name,omitempty"`
	HoursLeft         *float64 `json:"hours_left,omitempty"`
	AuctionLive       bool     `json:"auction_live"`
}

// Bid rows are append-only; the acceptance rule guarantees Amount was
// strictly greater than the product's current price at insertion time.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the settlement record written once when an auction with at least
// one bid closes.
type Order struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
