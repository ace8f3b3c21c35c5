package boost

import (
	"database/sql"
	"testing"
	"time"
)

func TestCampaignCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPaused, false},
		{StatusPending, StatusCompleted, false},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusActive, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusCancelled, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusPaused, false},
	}

	for _, tc := range cases {
		c := &Campaign{Status: tc.from}
		if got := c.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestCampaignRemaining(t *testing.T) {
	c := &Campaign{Budget: 10, Spent: 9}
	if got := c.Remaining(); got != 1 {
		t.Fatalf("expected remaining 1, got %d", got)
	}
}

func TestCampaignEnded(t *testing.T) {
	now := time.Now().UTC()

	open := &Campaign{}
	if open.Ended(now) {
		t.Fatal("campaign without end date must never end on schedule")
	}

	past := &Campaign{EndsAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}}
	if !past.Ended(now) {
		t.Fatal("campaign past its end date must be ended")
	}

	future := &Campaign{EndsAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true}}
	if future.Ended(now) {
		t.Fatal("campaign before its end date must not be ended")
	}
}
