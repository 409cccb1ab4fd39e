package handler

import (
	"time"

	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
)

// inviteRequest is the POST /trips/{tripID}/invitations body. TTL is optional;
// the server default applies when omitted.
type inviteRequest struct {
	Emails     []string `json:"emails"`
	TTLSeconds int      `json:"ttl_seconds,omitempty"`
}

const maxBatchSize = 50

func (r inviteRequest) Validate() error {
	if len(r.Emails) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one email is required")
	}
	if len(r.Emails) > maxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "too many emails in one batch")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	return nil
}

func (r inviteRequest) TTL(fallback time.Duration) time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return fallback
}

// promoteRequest is the POST /internal/promotions body, fired by the identity
// collaborator when an account is created.
type promoteRequest struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

func (r promoteRequest) Validate() error {
	if !email.IsValid(email.Normalize(r.Email)) {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	return nil
}
