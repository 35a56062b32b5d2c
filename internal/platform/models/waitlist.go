package models

import "encoding/json"

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistInvited   WaitlistStatus = "invited"
	WaitlistConverted WaitlistStatus = "converted"
	WaitlistDeclined  WaitlistStatus = "declined"
)

var waitlistTransitions = map[WaitlistStatus][]WaitlistStatus{
	WaitlistWaiting: {WaitlistInvited, WaitlistDeclined},
	WaitlistInvited: {WaitlistConverted, WaitlistDeclined},
}

func (s WaitlistStatus) Valid() bool {
	switch s {
	case WaitlistWaiting, WaitlistInvited, WaitlistConverted, WaitlistDeclined:
		return true
	}
	return false
}

// CanTransition reports whether an entry may move from s to next.
// Staying in the same state is always allowed.
func (s WaitlistStatus) CanTransition(next WaitlistStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range waitlistTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type WaitlistEntry struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	ProjectID    string          `json:"project_id"`
	ProductID    string          `json:"product_id,omitempty"`
	Position     int64           `json:"position"`
	Status       WaitlistStatus  `json:"status"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	InviteSentAt *int64          `json:"invite_sent_at,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}
