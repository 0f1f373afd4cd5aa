package domain

import "time"

type DealStatus string

const (
	DealDraft     DealStatus = "draft"
	DealScheduled DealStatus = "scheduled"
	DealActive    DealStatus = "active"
	DealExpired   DealStatus = "expired"
)

type Deal struct {
	ID          int64      `json:"id"`
	BusinessID  int64      `json:"business_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Discount    *string    `json:"discount,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	IsPublished bool       `json:"is_published"`
	Status      DealStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StatusAt derives the deal status at now. It is never stored.
func (d Deal) StatusAt(now time.Time) DealStatus {
	switch {
	case !d.IsPublished:
		return DealDraft
	case now.Before(d.StartsAt):
		return DealScheduled
	case now.After(d.EndsAt):
		return DealExpired
	default:
		return DealActive
	}
}

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type EventPhase string

const (
	PhaseUpcoming EventPhase = "upcoming"
	PhaseOngoing  EventPhase = "ongoing"
	PhasePast     EventPhase = "past"
)

type Event struct {
	ID          int64       `json:"id"`
	BusinessID  int64       `json:"business_id"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	Location    *string     `json:"location,omitempty"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	IsPublished bool        `json:"is_published"`
	IsCancelled bool        `json:"is_cancelled"`
	Status      EventStatus `json:"status"`
	Phase       EventPhase  `json:"phase"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (e Event) CurrentStatus() EventStatus {
	switch {
	case e.IsCancelled:
		return EventCancelled
	case !e.IsPublished:
		return EventDraft
	default:
		return EventPublished
	}
}

func (e Event) PhaseAt(now time.Time) EventPhase {
	switch {
	case now.Before(e.StartsAt):
		return PhaseUpcoming
	case now.After(e.EndsAt):
		return PhasePast
	default:
		return PhaseOngoing
	}
}

type DealInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Discount    *string   `json:"discount" validate:"omitempty,max=100"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Publish     bool      `json:"publish"`
}

type EventInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Location    *string   `json:"location" validate:"omitempty,max=255"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Publish     bool      `json:"publish"`
}
