package trip_test

import (
	"strings"
	"testing"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func validDraft() trip.Draft {
	return trip.Draft{
		Title:   "Weekend in Lisbon",
		StartAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestDraft_Validate_Valid(t *testing.T) {
	d := validDraft()
	d.GroupLabel = "College friends"
	d.EndAt = timePtr(d.StartAt.Add(48 * time.Hour))

	assert.NoError(t, d.Validate(now))
}

func TestDraft_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(d *trip.Draft)
		field string
	}{
		{"empty title", func(d *trip.Draft) { d.Title = "" }, "title"},
		{"blank title", func(d *trip.Draft) { d.Title = "   " }, "title"},
		{"long title", func(d *trip.Draft) { d.Title = strings.Repeat("a", trip.MaxTitleLength+1) }, "title"},
		{"long group label", func(d *trip.Draft) { d.GroupLabel = strings.Repeat("g", trip.MaxGroupLabelLength+1) }, "group_label"},
		{"missing start", func(d *trip.Draft) { d.StartAt = time.Time{} }, "start_at"},
		{"start in past", func(d *trip.Draft) { d.StartAt = now.Add(-time.Minute) }, "start_at"},
		{"end before start", func(d *trip.Draft) { d.EndAt = timePtr(d.StartAt.Add(-time.Hour)) }, "end_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.edit(&d)

			err := d.Validate(now)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidationFailed)

			var ve *errors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestDraft_Validate_EndEqualsStart(t *testing.T) {
	d := validDraft()
	d.EndAt = timePtr(d.StartAt)

	assert.NoError(t, d.Validate(now))
}

func TestDraft_Normalize(t *testing.T) {
	loc := time.FixedZone("WEST", 3600)
	d := trip.Draft{
		Title:      "  Weekend in Lisbon ",
		GroupLabel: " crew ",
		StartAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, loc),
	}

	n := d.Normalize()
	assert.Equal(t, "Weekend in Lisbon", n.Title)
	assert.Equal(t, "crew", n.GroupLabel)
	assert.Equal(t, time.UTC, n.StartAt.Location())
	assert.True(t, n.StartAt.Equal(d.StartAt))
}

func TestDraft_Equal(t *testing.T) {
	a := validDraft()
	b := validDraft()
	b.Title = " Weekend in Lisbon"
	assert.True(t, a.Equal(b))

	b.EndAt = timePtr(b.StartAt.Add(time.Hour))
	assert.False(t, a.Equal(b))

	a.EndAt = timePtr(a.StartAt.Add(time.Hour))
	assert.True(t, a.Equal(b))

	b.Description = "changed"
	assert.False(t, a.Equal(b))
}

func TestNewJoinCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := trip.NewJoinCode()
		require.NoError(t, err)
		assert.Len(t, code, trip.JoinCodeLength)
		assert.True(t, trip.ValidJoinCode(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestValidJoinCode_CaseInsensitive(t *testing.T) {
	assert.True(t, trip.ValidJoinCode("abc234"))
	assert.Equal(t, "ABC234", trip.NormalizeJoinCode(" abc234 "))
	assert.False(t, trip.ValidJoinCode("ABC23"))
	assert.False(t, trip.ValidJoinCode("ABC230"))
}

func TestNewTrip_AndOwnerMembership(t *testing.T) {
	tr := trip.NewTrip(validDraft(), "user-1", "intent:abc", now)

	assert.NotEqual(t, "", tr.ID.String())
	assert.Equal(t, "Weekend in Lisbon", tr.Title)
	assert.Equal(t, "user-1", tr.OwnerID)
	assert.Equal(t, "intent:abc", tr.CorrelationKey)
	assert.True(t, tr.Draft().Equal(validDraft()))

	m := trip.NewOwnerMembership(tr, now)
	assert.Equal(t, tr.ID, m.TripID)
	assert.Equal(t, "user-1", m.UserID)
	assert.Equal(t, trip.RoleOwner, m.Role)
}
