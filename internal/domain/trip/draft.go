package trip

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cassiomorais/tripcheckout/internal/domain/errors"
)

const (
	MaxTitleLength       = 120
	MaxGroupLabelLength  = 60
	MaxDescriptionLength = 2000
)

// Draft is the user-entered description of a trip that has not been created yet.
// Once persisted for a pending payment a Draft is treated as a value: tiers store
// copies and a new checkout replaces the whole intent.
type Draft struct {
	Title       string     `json:"title"`
	GroupLabel  string     `json:"group_label,omitempty"`
	Description string     `json:"description,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
}

// Normalize trims free-text fields and moves timestamps to UTC.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.GroupLabel = strings.TrimSpace(d.GroupLabel)
	d.Description = strings.TrimSpace(d.Description)
	d.StartAt = d.StartAt.UTC()
	if d.EndAt != nil {
		end := d.EndAt.UTC()
		d.EndAt = &end
	}
	return d
}

// Validate checks the draft against now. The same rules apply at submission and
// when a draft is recovered from storage after the payment round trip.
func (d Draft) Validate(now time.Time) error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return errors.NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errors.NewValidationError("title", "is too long")
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.GroupLabel)) > MaxGroupLabelLength {
		return errors.NewValidationError("group_label", "is too long")
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Description)) > MaxDescriptionLength {
		return errors.NewValidationError("description", "is too long")
	}
	if d.StartAt.IsZero() {
		return errors.NewValidationError("start_at", "is required")
	}
	if d.StartAt.Before(now) {
		return errors.NewValidationError("start_at", "must not be in the past")
	}
	if d.EndAt != nil && d.EndAt.Before(d.StartAt) {
		return errors.NewValidationError("end_at", "must not be before start_at")
	}
	return nil
}

// Equal reports whether two drafts describe the same trip.
func (d Draft) Equal(o Draft) bool {
	a, b := d.Normalize(), o.Normalize()
	if a.Title != b.Title || a.GroupLabel != b.GroupLabel || a.Description != b.Description {
		return false
	}
	if !a.StartAt.Equal(b.StartAt) {
		return false
	}
	switch {
	case a.EndAt == nil && b.EndAt == nil:
		return true
	case a.EndAt == nil || b.EndAt == nil:
		return false
	default:
		return a.EndAt.Equal(*b.EndAt)
	}
}
