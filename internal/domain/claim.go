package domain

import "time"

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

func ParseClaimStatus(s string) (ClaimStatus, bool) {
	switch st := ClaimStatus(s); st {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return st, true
	}
	return "", false
}

// Claim is an owner's request to take over an unclaimed listing.
type Claim struct {
	ID          int64       `json:"id"`
	BusinessID  int64       `json:"business_id"`
	UserID      string      `json:"user_id"`
	Email       *string     `json:"email,omitempty"`
	Status      ClaimStatus `json:"status"`
	DocumentKey *string     `json:"document_key,omitempty"`
	Note        *string     `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ReviewedAt  *time.Time  `json:"reviewed_at,omitempty"`
}

// Document is an uploaded verification file.
type Document struct {
	Filename    string
	ContentType string
	Size        int64
	Body        []byte
}
