package domain

import "time"

type Review struct {
	ID          int64           `json:"id"`
	BusinessID  int64           `json:"business_id"`
	UserID      *string         `json:"user_id,omitempty"`
	AuthorName  *string         `json:"author_name,omitempty"`
	Rating      *int            `json:"rating"`
	Title       *string         `json:"title,omitempty"`
	Content     *string         `json:"content,omitempty"`
	IsApproved  bool            `json:"is_approved"`
	Response    *ReviewResponse `json:"response,omitempty"`
	SourceID    *string         `json:"-"` // legacy import key
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ReviewResponse struct {
	Content     string    `json:"content"`
	RespondedAt time.Time `json:"responded_at"`
}

func (r Review) WrittenBy(userID string) bool {
	return r.UserID != nil && *r.UserID == userID
}

// RatingSummary is always derived from review rows.
// ReviewCount counts every row; ApprovedCount and Average only approved ones.
type RatingSummary struct {
	Average       *float64 `json:"average_rating"`
	ReviewCount   int      `json:"review_count"`
	ApprovedCount int      `json:"approved_review_count"`
	Histogram     [5]int   `json:"-"`
}

type ReviewInput struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Content *string `json:"content" validate:"omitempty,max=5000"`
}

type ReviewsPage struct {
	Items   []Review `json:"reviews"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

// ReviewQuery selects reviews for a business (or all businesses when BusinessID is 0).
type ReviewQuery struct {
	BusinessID int64
	Approved   *bool
	Limit      int
	Offset     int
}
