package api

import (
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/stores"
)

// Feed names accepted by GetFeed and WatchFeed.
const (
	FeedAvailable     = "available"
	FeedMyShifts      = "my_shifts"
	FeedJobs          = "jobs"
	FeedDashboard     = "dashboard"
	FeedConversations = "conversations"
)

// Intents accepted by Act.
const (
	IntentAccept     = "accept"
	IntentDecline    = "decline"
	IntentCancel     = "cancel"
	IntentApplyShift = "apply_shift"
	IntentApplyJob   = "apply_job"
	IntentPostJob    = "post_job"
)

type FeedRequest struct {
	Feed string `json:"feed"`
	Tab  string `json:"tab,omitempty"`
}

// ErrorView is a store error as shown to clients.
type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FeedView is one derived feed as rendered by clients.
type FeedView struct {
	Feed      string     `json:"feed"`
	Tab       string     `json:"tab,omitempty"`
	Loading   bool       `json:"loading"`
	Live      bool       `json:"live"`
	Version   uint64     `json:"version"`
	UpdatedAt string     `json:"updated_at,omitempty"`
	Error     *ErrorView `json:"error,omitempty"`

	Shifts        []stores.ShiftCard       `json:"shifts,omitempty"`
	Jobs          []stores.JobCard         `json:"jobs,omitempty"`
	Conversations []stores.ConversationRow `json:"conversations,omitempty"`
	HasNew        bool                     `json:"has_new,omitempty"`
	Unread        int                      `json:"unread,omitempty"`
	Filter        []string                 `json:"filter,omitempty"`
}

type MarkViewedResponse struct {
	HasNew bool `json:"has_new"`
}

type JobFilterRequest struct {
	Categories []string `json:"categories"`
}

type DateRequest struct {
	Date string `json:"date"`
}

type AvailabilityRange struct {
	From  string `json:"from,omitempty"`
	Until string `json:"until,omitempty"`
}

// AvailabilityView lists the effective state of every non-unset date.
type AvailabilityView struct {
	Dates map[string]string `json:"dates"`
	Dirty bool              `json:"dirty"`
}

type RuleRequest struct {
	Rule  string `json:"rule"`
	State string `json:"state"`
	From  string `json:"from"`
	Until string `json:"until"`
}

type RuleResponse struct {
	Applied int  `json:"applied"`
	Dirty   bool `json:"dirty"`
}

// ActRequest is one user intent. Which fields matter depends on Intent.
type ActRequest struct {
	Intent     string   `json:"intent"`
	ID         string   `json:"id,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Message    string   `json:"message,omitempty"`
	Title      string   `json:"title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Location   string   `json:"location,omitempty"`
}

type ActResponse struct {
	Intent string `json:"intent"`
	ID     string `json:"id"`
}

type ProfileRequest struct {
	ID string `json:"id"`
}

type ProfileResponse struct {
	Profile model.Profile `json:"profile"`
}

type CallsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type CallView struct {
	CallID    string `json:"call_id"`
	Procedure string `json:"procedure"`
	Args      string `json:"args"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type CallsResponse struct {
	Calls []CallView `json:"calls"`
}

// StoreStatus summarizes one live store.
type StoreStatus struct {
	Name    string     `json:"name"`
	Loading bool       `json:"loading"`
	Live    bool       `json:"live"`
	Items   int        `json:"items"`
	Version uint64     `json:"version"`
	Error   *ErrorView `json:"error,omitempty"`
}

type StatusResponse struct {
	Profile  string        `json:"profile"`
	Role     string        `json:"role"`
	ViewerID string        `json:"viewer_id"`
	Running  bool          `json:"running"`
	UptimeMs int64         `json:"uptime_ms"`
	Stores   []StoreStatus `json:"stores"`
}

type Empty struct{}
