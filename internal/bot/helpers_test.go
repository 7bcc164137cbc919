package bot

import (
	"testing"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/domain"
)

func TestNormalizeGender(t *testing.T) {
	cases := map[string]string{
		"Male":              "male",
		"Female":            "female",
		"Prefer not to say": "",
		"anything else":     "",
	}
	for in, want := range cases {
		if got := normalizeGender(in); got != want {
			t.Fatalf("normalizeGender(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIndustryKeyByName(t *testing.T) {
	b := &Bot{Cfg: config.Config{Industries: map[string]config.Industry{
		"dairy_farm": {Name: "Dairy Farm"},
		"other":      {Name: "Workplace"},
	}}}

	if key, ok := b.industryKeyByName("Dairy Farm"); !ok || key != "dairy_farm" {
		t.Fatalf("exact match: %q %v", key, ok)
	}
	if key, ok := b.industryKeyByName("dairy farm"); !ok || key != "dairy_farm" {
		t.Fatalf("case-insensitive match: %q %v", key, ok)
	}
	if _, ok := b.industryKeyByName("Space Mining"); ok {
		t.Fatalf("unknown industry must not match")
	}
}

func TestRegistrationsState(t *testing.T) {
	r := newRegistrations()

	if r.active(1) {
		t.Fatalf("fresh map must be inactive")
	}
	r.begin(1, &regState{step: stepLanguage})
	if !r.active(1) || r.get(1).step != stepLanguage {
		t.Fatalf("begin/get broken")
	}
	r.finish(1)
	if r.active(1) {
		t.Fatalf("finish must clear")
	}

	r.awaitFeedback(2)
	if !r.awaitingFeedback(2) || r.awaitingFeedback(3) {
		t.Fatalf("feedback arm broken")
	}
	r.clearFeedback(2)
	if r.awaitingFeedback(2) {
		t.Fatalf("feedback clear broken")
	}
}

func TestRoleLabelAndStatusIcon(t *testing.T) {
	if roleLabel(domain.RoleManager) != "a manager" ||
		roleLabel(domain.RoleWorker) != "a worker" ||
		roleLabel("") != "a user" {
		t.Fatalf("roleLabel mismatch")
	}
	if statusIcon(domain.TaskCompleted) != "✅" || statusIcon(domain.TaskPending) != "⬜" {
		t.Fatalf("statusIcon mismatch")
	}
}
