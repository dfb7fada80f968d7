package memory

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStore_ExperimentalGetsTrialExpiry(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := NewConstraint("No bare excepts", "except:", TierExperimental, Scope{Language: "python"}, "reflexion_loop")
	if err := s.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	got := s.AllConstraints()
	if len(got) != 1 {
		t.Fatalf("got %d constraints, want 1", len(got))
	}
	if got[0].ExpiresAt == nil {
		t.Fatalf("experimental constraint has no expiry")
	}
	want := c.CreatedAt.Add(ExperimentalTrial)
	if !got[0].ExpiresAt.Equal(want) {
		t.Fatalf("expiry=%v, want %v (created + 30d)", got[0].ExpiresAt, want)
	}
}

func TestStore_ShortPatternDeactivated(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := NewConstraint("too broad", "a", TierExperimental, Scope{}, "reflexion_loop")
	if err := s.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	got := s.AllConstraints()
	if got[0].Active {
		t.Fatalf("short-pattern constraint should be created inactive")
	}
	if got[0].Metadata["warning"] == "" {
		t.Fatalf("short-pattern constraint missing metadata warning")
	}
	if len(s.ActiveConstraints("python", "general")) != 0 {
		t.Fatalf("inactive constraint must not be served")
	}
}

func TestStore_ScopeMatching(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	pyGeneral := NewConstraint("py general", "eval(", TierValidated, Scope{Language: "python"}, "curator")
	pySecurity := NewConstraint("py security", "os.system(", TierValidated, Scope{Language: "python", Domain: "security"}, "curator")
	goAny := NewConstraint("go rule", "unsafe.Pointer", TierValidated, Scope{Language: "go"}, "curator")
	for _, c := range []Constraint{pyGeneral, pySecurity, goAny} {
		if err := s.AddConstraint(c); err != nil {
			t.Fatalf("AddConstraint: %v", err)
		}
	}

	// General query returns everything for the language.
	if got := s.ActiveConstraints("python", "general"); len(got) != 2 {
		t.Fatalf("python/general returned %d constraints, want 2", len(got))
	}
	// Specific domain returns general + matching domain.
	if got := s.ActiveConstraints("python", "security"); len(got) != 2 {
		t.Fatalf("python/security returned %d constraints, want 2", len(got))
	}
	if got := s.ActiveConstraints("python", "performance"); len(got) != 1 {
		t.Fatalf("python/performance returned %d constraints, want 1", len(got))
	}
	if got := s.ActiveConstraints("go", "general"); len(got) != 1 {
		t.Fatalf("go/general returned %d constraints, want 1", len(got))
	}
}

func TestStore_ExpiredConstraintNotServed(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := NewConstraint("stale", "legacy_api(", TierExperimental, Scope{}, "reflexion_loop")
	past := time.Now().Add(-time.Hour)
	c.ExpiresAt = &past
	if err := s.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	if got := s.ActiveConstraints("python", "general"); len(got) != 0 {
		t.Fatalf("expired constraint served: %v", got)
	}
	// Never physically deleted.
	if got := s.AllConstraints(); len(got) != 1 {
		t.Fatalf("expired constraint was removed from the library")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, c := range []Constraint{
		NewConstraint("rule one", "subprocess.call(", TierValidated, Scope{Language: "python", Domain: "security"}, "curator"),
		NewConstraint("rule two", "pickle.loads(", TierExperimental, Scope{Language: "python"}, "reflexion_loop"),
	} {
		if err := s.AddConstraint(c); err != nil {
			t.Fatalf("AddConstraint: %v", err)
		}
	}
	want := s.ActiveConstraints("python", "security")

	reloaded, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore(reload): %v", err)
	}
	got := reloaded.ActiveConstraints("python", "security")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("active constraints changed across reload (-want +got):\n%s", diff)
	}
}

func TestStore_PromoteTiers(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := NewConstraint("promotable", "md5(", TierExperimental, Scope{}, "reflexion_loop")
	if err := s.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	if err := s.Promote(c.ID, TierImmutable); err == nil {
		t.Fatalf("experimental -> immutable should be rejected")
	}
	if err := s.Promote(c.ID, TierValidated); err != nil {
		t.Fatalf("Promote to validated: %v", err)
	}

	got := s.AllConstraints()[0]
	if got.Tier != TierValidated {
		t.Fatalf("tier=%s, want validated", got.Tier)
	}
	if got.ExpiresAt != nil {
		t.Fatalf("promotion should clear the trial expiry")
	}
}

func TestStore_IncidentLogAppendOnly(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := s.RecordIncident(Incident{
			SessionID: "sess",
			Decision:  "PASS",
			Outcome:   OutcomeFailure,
			Details:   map[string]string{"error": "prod rollback"},
		})
		if err != nil {
			t.Fatalf("RecordIncident: %v", err)
		}
	}

	incidents := s.Incidents()
	if len(incidents) != 3 {
		t.Fatalf("got %d incidents, want 3", len(incidents))
	}
	for _, inc := range incidents {
		if inc.Timestamp.IsZero() {
			t.Fatalf("incident missing timestamp")
		}
	}
}
