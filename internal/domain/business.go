package domain

import (
	"fmt"
	"time"
)

type BusinessStatus string

const (
	StatusPending   BusinessStatus = "pending"
	StatusApproved  BusinessStatus = "approved"
	StatusRejected  BusinessStatus = "rejected"
	StatusSuspended BusinessStatus = "suspended"
)

// allowed admin transitions; anything not listed is rejected.
var statusTransitions = map[BusinessStatus][]BusinessStatus{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusSuspended},
	StatusSuspended: {StatusApproved},
	StatusRejected:  {StatusPending},
}

func ParseBusinessStatus(s string) (BusinessStatus, bool) {
	switch st := BusinessStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended:
		return st, true
	}
	return "", false
}

// CanTransition reports whether an admin may move a business from one status to another.
func (s BusinessStatus) CanTransition(to BusinessStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BusinessStatus) Transition(to BusinessStatus) error {
	if !s.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return nil
}

type Business struct {
	ID           int64          `json:"id"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  *string        `json:"description,omitempty"`
	CategoryID   *int64         `json:"category_id,omitempty"`
	CategoryName *string        `json:"category_name,omitempty"`
	CategorySlug *string        `json:"category_slug,omitempty"`
	Address      *string        `json:"address,omitempty"`
	City         *string        `json:"city,omitempty"`
	State        *string        `json:"state,omitempty"`
	Zip          *string        `json:"zip,omitempty"`
	Lat          *float64       `json:"lat,omitempty"`
	Lng          *float64       `json:"lng,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Email        *string        `json:"email,omitempty"`
	Website      *string        `json:"website,omitempty"`
	PriceRange   *int           `json:"price_range,omitempty"`
	Status       BusinessStatus `json:"status"`
	IsClaimed    bool           `json:"is_claimed"`
	IsVerified   bool           `json:"is_verified"`
	IsFeatured   bool           `json:"is_featured"`
	IsActive     bool           `json:"is_active"`
	OwnerID      *string        `json:"owner_id,omitempty"`
	SubmittedBy  *string        `json:"-"`
	ViewCount    int64          `json:"view_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// derived at read time, never written back
	Rating   RatingSummary `json:"rating"`
	Distance *float64      `json:"distance,omitempty"`
}

// Visible reports whether the public may see the listing.
func (b Business) Visible() bool {
	return b.IsActive && b.Status == StatusApproved
}

// OwnedBy reports whether userID is the listing's verified owner.
func (b Business) OwnedBy(userID string) bool {
	return b.OwnerID != nil && *b.OwnerID != "" && *b.OwnerID == userID
}

func (b Business) Coords() (Coords, bool) {
	if b.Lat == nil || b.Lng == nil {
		return Coords{}, false
	}
	return Coords{Lat: *b.Lat, Lng: *b.Lng}, true
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BusinessInput is the body of a listing submission.
type BusinessInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	CategoryID  *int64   `json:"category_id" validate:"omitempty,gt=0"`
	Address     *string  `json:"address" validate:"omitempty,max=255"`
	City        *string  `json:"city" validate:"omitempty,max=100"`
	State       *string  `json:"state" validate:"omitempty,max=50"`
	Zip         *string  `json:"zip" validate:"omitempty,max=20"`
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
	Phone       *string  `json:"phone" validate:"omitempty,max=40"`
	Email       *string  `json:"email" validate:"omitempty,email"`
	Website     *string  `json:"website" validate:"omitempty,url"`
	PriceRange  *int     `json:"price_range" validate:"omitempty,min=1,max=4"`
}

type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DisplayOrder  int    `json:"display_order"`
	IsActive      bool   `json:"is_active"`
	BusinessCount int    `json:"business_count"`
}
