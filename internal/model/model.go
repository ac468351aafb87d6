// Package model holds the records mirrored from the remote collections and
// decodes them from raw remote documents. Every date field is normalized to
// an instant.Instant at decode time; status values are checked against the
// closed enumerations in package status.
package model

import (
	"time"

	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/instant"
	"github.com/matheus3301/shiftsync/internal/status"
)

// Shift is one posted unit of work.
type Shift struct {
	ID               string           `mapstructure:"-" json:"id"`
	Title            string           `mapstructure:"title" json:"title,omitempty"`
	Role             string           `mapstructure:"role" json:"role"`
	RoleCategory     string           `mapstructure:"roleCategory" json:"role_category,omitempty"`
	OwnerID          string           `mapstructure:"ownerId" json:"owner_id"`
	Status           status.Shift     `mapstructure:"status" json:"status"`
	StartTime        instant.Instant  `mapstructure:"startTime" json:"start_time"`
	EndTime          instant.Instant  `mapstructure:"endTime" json:"end_time"`
	PayPerHour       float64          `mapstructure:"payPerHour" json:"pay_per_hour"`
	Location         string           `mapstructure:"location" json:"location,omitempty"`
	Coordinates      *geo.Coordinates `mapstructure:"coordinates" json:"coordinates,omitempty"`
	OfferedTo        string           `mapstructure:"offeredTo" json:"offered_to,omitempty"`
	OfferedAt        instant.Instant  `mapstructure:"offeredAt" json:"offered_at"`
	OfferExpiresAt   instant.Instant  `mapstructure:"offerExpiresAt" json:"offer_expires_at"`
	AssignedWorkerID string           `mapstructure:"assignedWorkerId" json:"assigned_worker_id,omitempty"`
	DatePosted       instant.Instant  `mapstructure:"datePosted" json:"date_posted"`
}

// StatusName implements feed.Statused.
func (s Shift) StatusName() string { return string(s.Status) }

// IsOffer reports whether the shift is currently offered to a worker.
func (s Shift) IsOffer() bool { return s.Status == status.OfferedToWorker }

// Date returns the shift's calendar date (YYYY-MM-DD) in loc, or "" when the
// start time is absent.
func (s Shift) Date(loc *time.Location) string {
	t, ok := s.StartTime.Time()
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// Job is a standing job listing.
type Job struct {
	ID             string          `mapstructure:"-" json:"id"`
	Title          string          `mapstructure:"title" json:"title,omitempty"`
	OwnerID        string          `mapstructure:"ownerId" json:"owner_id"`
	Status         status.Job      `mapstructure:"status" json:"status"`
	RoleCategories []string        `mapstructure:"roleCategories" json:"role_categories"`
	Location       string          `mapstructure:"location" json:"location,omitempty"`
	CreatedAt      instant.Instant `mapstructure:"createdAt" json:"created_at"`
}

// StatusName implements feed.Statused.
func (j Job) StatusName() string { return string(j.Status) }

// Message is the last message preview of a conversation.
type Message struct {
	Text      string          `mapstructure:"text" json:"text"`
	Timestamp instant.Instant `mapstructure:"timestamp" json:"timestamp"`
	SenderID  string          `mapstructure:"senderId" json:"sender_id"`
}

// Conversation is a chat thread between participants.
type Conversation struct {
	ID             string         `mapstructure:"-" json:"id"`
	ParticipantIDs []string       `mapstructure:"participantIds" json:"participant_ids"`
	LastMessage    *Message       `mapstructure:"lastMessage" json:"last_message,omitempty"`
	UnreadCount    map[string]int `mapstructure:"unreadCount" json:"unread_count,omitempty"`
}

// UnreadFor returns the unread count for participant id.
func (c Conversation) UnreadFor(id string) int {
	return c.UnreadCount[id]
}

// Profile is a user profile read with a one-shot lookup.
type Profile struct {
	ID             string   `mapstructure:"-" json:"id"`
	DisplayName    string   `mapstructure:"displayName" json:"display_name"`
	Role           string   `mapstructure:"role" json:"role"`
	RoleCategories []string `mapstructure:"roleCategories" json:"role_categories,omitempty"`
	Rating         *float64 `mapstructure:"rating" json:"rating,omitempty"`
}
