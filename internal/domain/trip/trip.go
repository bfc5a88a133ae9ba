package trip

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JoinCodeLength is the number of characters in a shareable join code.
const JoinCodeLength = 6

// joinCodeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Role is a member's role within a trip.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Trip is the resource created once a payment has been verified.
type Trip struct {
	ID             uuid.UUID
	Title          string
	GroupLabel     string
	Description    string
	StartAt        time.Time
	EndAt          *time.Time
	JoinCode       string
	OwnerID        string
	CorrelationKey string
	CreatedAt      time.Time
}

// Membership links a user to a trip.
type Membership struct {
	TripID   uuid.UUID
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// NewTrip builds a trip from a validated draft. The join code is left empty;
// callers assign one with NewJoinCode so collisions can be retried.
func NewTrip(d Draft, ownerID, correlationKey string, now time.Time) *Trip {
	d = d.Normalize()
	return &Trip{
		ID:             uuid.New(),
		Title:          d.Title,
		GroupLabel:     d.GroupLabel,
		Description:    d.Description,
		StartAt:        d.StartAt,
		EndAt:          d.EndAt,
		OwnerID:        ownerID,
		CorrelationKey: correlationKey,
		CreatedAt:      now.UTC(),
	}
}

// NewOwnerMembership returns the owner membership for t.
func NewOwnerMembership(t *Trip, now time.Time) *Membership {
	return &Membership{
		TripID:   t.ID,
		UserID:   t.OwnerID,
		Role:     RoleOwner,
		JoinedAt: now.UTC(),
	}
}

// Draft returns the draft the trip was created from.
func (t *Trip) Draft() Draft {
	return Draft{
		Title:       t.Title,
		GroupLabel:  t.GroupLabel,
		Description: t.Description,
		StartAt:     t.StartAt,
		EndAt:       t.EndAt,
	}
}

// NewJoinCode returns a random join code.
func NewJoinCode() (string, error) {
	var buf [JoinCodeLength]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read random join code: %w", err)
	}
	code := make([]byte, JoinCodeLength)
	for i, b := range buf {
		code[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(code), nil
}

// NormalizeJoinCode makes join code comparison case-insensitive.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidJoinCode reports whether code has the join code shape.
func ValidJoinCode(code string) bool {
	code = NormalizeJoinCode(code)
	if len(code) != JoinCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(joinCodeAlphabet, r) {
			return false
		}
	}
	return true
}
