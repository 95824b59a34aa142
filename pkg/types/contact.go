// Package types defines the core domain types for the Kinvault system.
// Contacts, memories, and reminders are the atomic units of the vault;
// they are stored encrypted and only exist in plaintext inside a request.
package types

import (
	"strings"
	"time"
)

// Priority expresses how important a contact or reminder is to the user.
// It drives the reconnection policy in the trigger engine.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps arbitrary input to a known priority level.
// Unknown or empty values collapse to medium.
func NormalizePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// DateNotesSuffix marks a dates-map entry as a companion annotation
// (e.g. "birthday_notes") rather than an actual recurring date.
const DateNotesSuffix = "_notes"

// Contact represents one person in the user's vault.
// The name is the identity key; resolution is case-insensitive.
type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`

	// Dates maps a date type ("birthday", "anniversary", ...) to a recurring
	// date in "DD-MM" or "DD-MM-YYYY" form. Keys ending in "_notes" are
	// free-text annotations for the matching date type, not dates.
	Dates map[string]string `json:"dates,omitempty"`

	Priority Priority `json:"priority,omitempty"`

	// LastTalkedDate is the date of the most recent interaction (YYYY-MM-DD).
	// Updated automatically whenever a memory is stored for this contact.
	LastTalkedDate string `json:"last_talked_date,omitempty"`

	// CreatedAt is set once when the contact is first stored and survives
	// merges. It is the fallback reference for "days since contact" when no
	// interaction has been recorded yet.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DetailFields returns the searchable string-valued fields of the contact,
// keyed by field name. The name itself is not included; callers that match
// on name do so explicitly.
func (c *Contact) DetailFields() map[string]string {
	fields := map[string]string{
		"email":    c.Email,
		"phone":    c.Phone,
		"company":  c.Company,
		"location": c.Location,
		"notes":    c.Notes,
	}
	for k, v := range c.Dates {
		fields["dates."+k] = v
	}
	return fields
}

// Memory is one remembered interaction with a contact. Memories are
// append-only; storing one bumps the contact's LastTalkedDate to today.
type Memory struct {
	ID          string   `json:"id"`
	ContactName string   `json:"contact_name"`
	Summary     string   `json:"summary"`
	Location    string   `json:"location,omitempty"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Reminder is a user-requested follow-up tied to a contact. Append-only.
type Reminder struct {
	ID          string   `json:"id"`
	ContactName string   `json:"contact_name"`
	Title       string   `json:"title"`
	Date        string   `json:"date,omitempty"`
	Priority    Priority `json:"priority,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}
