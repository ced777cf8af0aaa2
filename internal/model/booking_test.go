package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBookingType(t *testing.T) {
	for _, raw := range []string{"INDIVIDUAL", "TEACHER_PRIVATE", "TEACHER_PUBLIC", "ASSOCIATION"} {
		bt, ok := ParseBookingType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, BookingType(raw), bt)
	}
	for _, raw := range []string{"", "individual", "TEACHER", "ADMIN", "PUBLIC"} {
		_, ok := ParseBookingType(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseSessionType(t *testing.T) {
	for _, raw := range []string{"PUBLIC", "PRIVATE_SCHOOL", "PUBLIC_SCHOOL", "ASSOCIATION"} {
		st, ok := ParseSessionType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, SessionType(raw), st)
	}
	_, ok := ParseSessionType("public")
	assert.False(t, ok)
}

func TestEligibleFor(t *testing.T) {
	cases := []struct {
		booking BookingType
		session SessionType
		want    bool
	}{
		// PUBLIC sessions accept everyone.
		{BookingIndividual, SessionPublic, true},
		{BookingTeacherPrivate, SessionPublic, true},
		{BookingTeacherPublic, SessionPublic, true},
		{BookingAssociation, SessionPublic, true},
		// Restricted sessions accept only the matching category.
		{BookingTeacherPrivate, SessionPrivateSchool, true},
		{BookingTeacherPublic, SessionPrivateSchool, false},
		{BookingIndividual, SessionPrivateSchool, false},
		{BookingTeacherPublic, SessionPublicSchool, true},
		{BookingTeacherPrivate, SessionPublicSchool, false},
		{BookingAssociation, SessionAssociation, true},
		{BookingIndividual, SessionAssociation, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.booking.EligibleFor(tc.session),
			"%s on %s", tc.booking, tc.session)
	}
}

func TestSessionAvailableSeats(t *testing.T) {
	s := Session{TotalCapacity: 50, ReservedCount: 30}
	assert.Equal(t, uint32(20), s.AvailableSeats())

	s.ReservedCount = 50
	assert.Equal(t, uint32(0), s.AvailableSeats())

	// Defensive clamp when the counter somehow exceeds capacity.
	s.ReservedCount = 60
	assert.Equal(t, uint32(0), s.AvailableSeats())
}

func TestSessionBookable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := Session{Status: "SCHEDULED", StartsAt: now.Add(24 * time.Hour)}
	assert.True(t, s.Bookable(now))

	s.StartsAt = now.Add(-time.Hour)
	assert.False(t, s.Bookable(now), "started sessions are closed")

	s.StartsAt = now.Add(24 * time.Hour)
	s.Status = "CANCELLED"
	assert.False(t, s.Bookable(now))

	s.Status = "FINISHED"
	assert.False(t, s.Bookable(now))
}
