package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LinkPrecedence marks a contact as the canonical record of its identity or a subordinate one.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// ParseLinkPrecedence validates a stored precedence value.
func ParseLinkPrecedence(v string) (LinkPrecedence, error) {
	switch LinkPrecedence(v) {
	case LinkPrecedencePrimary, LinkPrecedenceSecondary:
		return LinkPrecedence(v), nil
	default:
		return "", fmt.Errorf("invalid link precedence %q", v)
	}
}

// Contact is one stored contact row. Email and PhoneNumber are nil when absent.
// LinkedID is set only for secondaries and always names a primary.
type Contact struct {
	ID             int64
	Email          *string
	PhoneNumber    *string
	LinkPrecedence LinkPrecedence
	LinkedID       *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPrimary reports whether c is the canonical record of its component.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// EmailValue returns the email or "".
func (c *Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PhoneValue returns the phone number or "".
func (c *Contact) PhoneValue() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return *c.PhoneNumber
}

// Clone returns a deep copy so callers cannot alias store state.
func (c *Contact) Clone() *Contact {
	cp := *c
	if c.Email != nil {
		e := *c.Email
		cp.Email = &e
	}
	if c.PhoneNumber != nil {
		p := *c.PhoneNumber
		cp.PhoneNumber = &p
	}
	if c.LinkedID != nil {
		l := *c.LinkedID
		cp.LinkedID = &l
	}
	return &cp
}

// NewContact is the input to a store create. The store assigns ID and timestamps.
type NewContact struct {
	Email          *string
	PhoneNumber    *string
	LinkPrecedence LinkPrecedence
	LinkedID       *int64
}

// SortByCreation orders contacts by full-precision CreatedAt, then ID.
func SortByCreation(contacts []*Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// IDs returns the ids of contacts in order.
func IDs(contacts []*Contact) []int64 {
	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

// Submission is an incoming (email, phone) pair; "" means absent.
type Submission struct {
	Email       string
	PhoneNumber string
}

// Normalize trims both fields and lowercases the email.
func (s Submission) Normalize() Submission {
	return Submission{
		Email:       strings.ToLower(strings.TrimSpace(s.Email)),
		PhoneNumber: strings.TrimSpace(s.PhoneNumber),
	}
}

// Empty reports whether neither identifying field is present.
func (s Submission) Empty() bool {
	return s.Email == "" && s.PhoneNumber == ""
}

// EmailPtr returns the email as a nullable column value.
func (s Submission) EmailPtr() *string {
	if s.Email == "" {
		return nil
	}
	e := s.Email
	return &e
}

// PhonePtr returns the phone number as a nullable column value.
func (s Submission) PhonePtr() *string {
	if s.PhoneNumber == "" {
		return nil
	}
	p := s.PhoneNumber
	return &p
}

// LockKeys returns the serialization keys for the submission, sorted.
func (s Submission) LockKeys() []string {
	return KeysFor([]string{s.Email}, []string{s.PhoneNumber})
}

// ComponentKeys returns the serialization keys covering every email and phone in contacts.
func ComponentKeys(contacts []*Contact) []string {
	emails := make([]string, 0, len(contacts))
	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		emails = append(emails, c.EmailValue())
		phones = append(phones, c.PhoneValue())
	}
	return KeysFor(emails, phones)
}

// KeysFor builds sorted, de-duplicated lock keys; empty values are skipped.
// Keys are always acquired in this order so concurrent lockers cannot cross.
func KeysFor(emails, phones []string) []string {
	seen := make(map[string]struct{}, len(emails)+len(phones))
	keys := make([]string, 0, len(emails)+len(phones))
	add := func(prefix, v string) {
		if v == "" {
			return
		}
		k := prefix + v
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, e := range emails {
		add("email:", e)
	}
	for _, p := range phones {
		add("phone:", p)
	}
	sort.Strings(keys)
	return keys
}
