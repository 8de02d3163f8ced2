package email

import "time"

type Status string

const (
	StatusQueued       Status = "queued"
	StatusSent         Status = "sent"
	StatusDeferred     Status = "deferred"
	StatusDelivered    Status = "delivered"
	StatusOpened       Status = "opened"
	StatusClicked      Status = "clicked"
	StatusBounced      Status = "bounced"
	StatusFailed       Status = "failed"
	StatusComplained   Status = "complained"
	StatusUnsubscribed Status = "unsubscribed"
)

// Subscriber statuses that exclude an address from campaigns.
const (
	SubscriberActive       = "active"
	SubscriberBounced      = "bounced"
	SubscriberUnsubscribed = "unsubscribed"
	SubscriberComplained   = "complained"
)

var eventStatus = map[string]Status{
	"processed":         StatusSent,
	"delivered":         StatusDelivered,
	"open":              StatusOpened,
	"click":             StatusClicked,
	"bounce":            StatusBounced,
	"dropped":           StatusFailed,
	"deferred":          StatusDeferred,
	"spamreport":        StatusComplained,
	"unsubscribe":       StatusUnsubscribed,
	"group_unsubscribe": StatusUnsubscribed,
}

// StatusForEvent maps a webhook event type to a log status.
func StatusForEvent(event string) (Status, bool) {
	s, ok := eventStatus[event]
	return s, ok
}

var rank = map[Status]int{
	StatusQueued:    0,
	StatusSent:      1,
	StatusDeferred:  2,
	StatusDelivered: 3,
	StatusOpened:    4,
	StatusClicked:   5,
}

func (s Status) Terminal() bool {
	switch s {
	case StatusBounced, StatusFailed, StatusComplained, StatusUnsubscribed:
		return true
	}
	return false
}

// Advance reports whether a log in status from may move to to.
// Terminal statuses stick; engagement only moves forward.
func Advance(from, to Status) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to.Terminal() {
		return true
	}
	fr, ok := rank[from]
	if !ok {
		return true
	}
	return rank[to] > fr
}

// SuppressesSubscriber reports whether status should flip the subscriber record.
func SuppressesSubscriber(s Status) (string, bool) {
	switch s {
	case StatusBounced:
		return SubscriberBounced, true
	case StatusUnsubscribed:
		return SubscriberUnsubscribed, true
	case StatusComplained:
		return SubscriberComplained, true
	}
	return "", false
}

// Suppressed reports whether a subscriber status blocks campaign sends.
func Suppressed(subscriberStatus string) bool {
	switch subscriberStatus {
	case SubscriberBounced, SubscriberUnsubscribed, SubscriberComplained:
		return true
	}
	return false
}

type Log struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Status     Status    `json:"status"`
	MessageID  string    `json:"message_id,omitempty"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Template   string    `json:"template,omitempty"`
	Error      string    `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

type Campaign struct {
	ID              string         `json:"id,omitempty"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Subject         string         `json:"subject"`
	Status          string         `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	Stats           map[string]int `json:"stats"`
	CreatedAt       time.Time      `json:"created_at"`
}

const (
	CampaignSending     = "sending"
	CampaignCompleted   = "completed"
	CampaignFailed      = "failed"
	CampaignInterrupted = "interrupted" // request ended before every recipient was tried
)
