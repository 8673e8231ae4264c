package models

import (
	"errors"
	"time"
)

// ConfirmationTTL is the fixed window a responder has to answer.
const ConfirmationTTL = 30 * time.Second

// ConfirmationStatus is the lifecycle of a time-boxed confirmation.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"
	ConfirmationAccepted ConfirmationStatus = "accepted"
	ConfirmationDeclined ConfirmationStatus = "declined"
	ConfirmationExpired  ConfirmationStatus = "expired"
)

var (
	ErrConfirmationResolved = errors.New("confirmation is no longer pending")
	ErrConfirmationExpired  = errors.New("confirmation has expired")
)

// MatchConfirmation is an ephemeral yes/no request from a requester to a
// responder, e.g. asking a player to confirm a roster substitution. At most
// one pending confirmation may exist per responder.
type MatchConfirmation struct {
	ID          string `gorm:"primaryKey" json:"id"`
	RequesterID string `gorm:"index;not null" json:"requester_id"`
	ResponderID string `gorm:"index;not null;uniqueIndex:idx_confirmations_responder_pending,where:status = 'pending'" json:"responder_id"`

	// Human-meaningful context for the responder's client.
	Action  string `gorm:"not null" json:"action"` // e.g. "roster_substitution"
	MatchID string `gorm:"index" json:"match_id,omitempty"`
	Payload string `json:"payload,omitempty"`

	Status      ConfirmationStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	ExpiresAt   time.Time          `gorm:"not null;index" json:"expires_at"`
	RespondedAt *time.Time         `json:"responded_at,omitempty"`

	Timestamps
}

// Pending reports whether the confirmation is still answerable at now.
func (c *MatchConfirmation) Pending(now time.Time) bool {
	return c.Status == ConfirmationPending && now.Before(c.ExpiresAt)
}

// Respond applies an accept or decline. A response at or past the expiry is
// rejected and forces the status to expired; any response is terminal.
func (c *MatchConfirmation) Respond(accept bool, now time.Time) error {
	if c.Status != ConfirmationPending {
		return ErrConfirmationResolved
	}
	if !now.Before(c.ExpiresAt) {
		c.Status = ConfirmationExpired
		c.RespondedAt = &now
		return ErrConfirmationExpired
	}
	if accept {
		c.Status = ConfirmationAccepted
	} else {
		c.Status = ConfirmationDeclined
	}
	c.RespondedAt = &now
	return nil
}
