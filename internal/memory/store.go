package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"conclave/internal/logging"
)

const (
	constraintsFile = "constraints.json"
	incidentsFile   = "incidents.json"
)

// Store is the persistent constraint library and incident log. Writes are
// whole-file rewrites (load-modify-store), so all mutation goes through a
// single writer lock; concurrent deliberations in one process share a Store.
type Store struct {
	mu  sync.RWMutex
	dir string

	constraints []Constraint
	incidents   []Incident
}

// NewStore loads (or initializes) the memory store under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory dir: %w", err)
	}

	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	log := logging.Get(logging.CategoryMemory)

	data, err := os.ReadFile(filepath.Join(s.dir, constraintsFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read constraints: %w", err)
	default:
		if err := json.Unmarshal(data, &s.constraints); err != nil {
			// A corrupt library is treated as empty rather than fatal,
			// matching load-tolerant startup elsewhere in the system.
			log.Error("corrupt constraints.json, starting empty: %v", err)
			s.constraints = nil
		}
	}

	data, err = os.ReadFile(filepath.Join(s.dir, incidentsFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read incidents: %w", err)
	default:
		if err := json.Unmarshal(data, &s.incidents); err != nil {
			log.Error("corrupt incidents.json, starting empty: %v", err)
			s.incidents = nil
		}
	}

	log.Info("memory loaded: %d constraints, %d incidents", len(s.constraints), len(s.incidents))
	return nil
}

// saveLocked rewrites both documents. Caller holds the write lock.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.constraints, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, constraintsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write constraints: %w", err)
	}

	data, err = json.MarshalIndent(s.incidents, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, incidentsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write incidents: %w", err)
	}
	return nil
}

// AddConstraint appends a constraint and persists. Experimental constraints
// without an explicit expiry get the 30-day trial; patterns shorter than
// MinPatternLength are deactivated with a metadata warning (anti-poisoning).
func (s *Store) AddConstraint(c Constraint) error {
	if len(c.Pattern) < MinPatternLength {
		c.Active = false
		if c.Metadata == nil {
			c.Metadata = map[string]string{}
		}
		c.Metadata["warning"] = "Overly broad pattern detected"
	}

	if c.Tier == TierExperimental && c.ExpiresAt == nil {
		expiry := c.CreatedAt.Add(ExperimentalTrial)
		c.ExpiresAt = &expiry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraints = append(s.constraints, c)
	return s.saveLocked()
}

// SetActive toggles a constraint's active flag. Returns false if the id is
// unknown.
func (s *Store) SetActive(id string, active bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.constraints {
		if s.constraints[i].ID == id {
			s.constraints[i].Active = active
			return true, s.saveLocked()
		}
	}
	return false, nil
}

// Promote raises a constraint to a higher tier (experimental -> validated,
// validated -> immutable). Any other transition is rejected.
func (s *Store) Promote(id string, tier Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.constraints {
		if s.constraints[i].ID != id {
			continue
		}
		from := s.constraints[i].Tier
		ok := (from == TierExperimental && tier == TierValidated) ||
			(from == TierValidated && tier == TierImmutable)
		if !ok {
			return fmt.Errorf("invalid tier promotion %s -> %s", from, tier)
		}
		s.constraints[i].Tier = tier
		if tier != TierExperimental {
			s.constraints[i].ExpiresAt = nil
		}
		return s.saveLocked()
	}
	return fmt.Errorf("constraint %s not found", id)
}

// ActiveConstraints returns constraints that are active, unexpired, and in
// scope for the given language/domain.
func (s *Store) ActiveConstraints(language, domain string) []Constraint {
	if domain == "" {
		domain = "general"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Constraint
	for i := range s.constraints {
		c := s.constraints[i]
		if !c.Active || c.Expired() {
			continue
		}
		if c.Matches(language, domain) {
			active = append(active, c)
		}
	}
	return active
}

// AllConstraints returns a copy of the full library, including inactive and
// expired entries.
func (s *Store) AllConstraints() []Constraint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Constraint, len(s.constraints))
	copy(out, s.constraints)
	return out
}

// RecordIncident appends to the outcome log and persists.
func (s *Store) RecordIncident(inc Incident) error {
	if inc.Timestamp.IsZero() {
		inc.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, inc)
	return s.saveLocked()
}

// Incidents returns a copy of the incident log.
func (s *Store) Incidents() []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}
