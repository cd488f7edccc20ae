package handler

import (
	"strings"

	dErrors "identity-recon/pkg/domain-errors"
)

const (
	maxEmailLength = 320
	maxPhoneLength = 32
)

// IdentifyRequest is the HTTP request body for POST /identify.
// Either field may be omitted or null, but not both.
type IdentifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// Validate validates and trims the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *IdentifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Email = trimmed(r.Email)
	r.PhoneNumber = trimmed(r.PhoneNumber)

	// Size validation (fail fast)
	if len(r.EmailValue()) > maxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email must be at most 320 characters")
	}
	if len(r.PhoneValue()) > maxPhoneLength {
		return dErrors.New(dErrors.CodeValidation, "phoneNumber must be at most 32 characters")
	}

	if r.EmailValue() == "" && r.PhoneValue() == "" {
		return dErrors.New(dErrors.CodeValidation, "provide email or phoneNumber")
	}
	return nil
}

// EmailValue returns the submitted email, or "" when absent.
func (r *IdentifyRequest) EmailValue() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

// PhoneValue returns the submitted phone number, or "" when absent.
func (r *IdentifyRequest) PhoneValue() string {
	if r.PhoneNumber == nil {
		return ""
	}
	return *r.PhoneNumber
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
