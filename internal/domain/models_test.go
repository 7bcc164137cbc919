package domain

import (
	"testing"
	"time"
)

func TestSubscriptionEntitledAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	cases := []struct {
		name   string
		status string
		endsAt *time.Time
		want   bool
	}{
		{"active", SubscriptionActive, nil, true},
		{"active with past ends_at still entitled", SubscriptionActive, &past, true},
		{"cancelled with future end", SubscriptionCancelled, &future, true},
		{"cancelled with past end", SubscriptionCancelled, &past, false},
		{"cancelled without end", SubscriptionCancelled, nil, false},
		{"paused", SubscriptionPaused, &future, false},
		{"expired", SubscriptionExpired, nil, false},
		{"free", SubscriptionFree, nil, false},
		{"unknown status", "weird", &future, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Subscription{Status: tc.status, EndsAt: tc.endsAt}
			if got := s.EntitledAt(now); got != tc.want {
				t.Fatalf("EntitledAt(%s, %v) = %v, want %v", tc.status, tc.endsAt, got, tc.want)
			}
		})
	}
}

func TestSubscriptionEntitlement_PureOverTime(t *testing.T) {
	// The same row flips entitlement purely by the clock.
	ends := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Subscription{Status: SubscriptionCancelled, EndsAt: &ends}

	if !s.EntitledAt(ends.Add(-time.Minute)) {
		t.Fatalf("should be entitled before ends_at")
	}
	if s.EntitledAt(ends) {
		t.Fatalf("should not be entitled at ends_at")
	}
	if s.EntitledAt(ends.Add(time.Minute)) {
		t.Fatalf("should not be entitled after ends_at")
	}
}

func TestConnectionHelpers(t *testing.T) {
	c := Connection{ManagerID: 10, WorkerID: 20}

	if !c.Involves(10) || !c.Involves(20) || c.Involves(30) {
		t.Fatalf("Involves mismatch")
	}
	if c.Counterpart(10) != 20 || c.Counterpart(20) != 10 {
		t.Fatalf("Counterpart mismatch")
	}
}
