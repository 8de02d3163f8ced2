package ws

import (
	"encoding/json"
	"time"
)

const EventEmailStatus = "email_status"

type EmailStatusEvent struct {
	Type       string `json:"type"`
	EmailLogID string `json:"emailLogId"`
	CampaignID string `json:"campaignId,omitempty"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status"`
	Event      string `json:"event"`
	Timestamp  string `json:"timestamp"`
}

// NotifyEmailStatus pushes a status change to the owner of the email log.
func (h *Hub) NotifyEmailStatus(userID string, evt EmailStatusEvent) {
	if h == nil {
		return
	}
	evt.Type = EventEmailStatus
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.Broadcast(userID, b)
}
