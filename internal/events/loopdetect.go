package events

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Loop detector rule: 3 identical actions without a different action in
// between means the agent is stuck.
const (
	loopWindow    = 10
	loopThreshold = 3
)

// LoopDetector tracks agent action fingerprints over a sliding window and
// flags immediate repetition.
type LoopDetector struct {
	mu      sync.Mutex
	history []uint64
}

// NewLoopDetector creates an empty detector.
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{}
}

// Check records one (agent, action, target) fingerprint and returns loop
// details when the last loopThreshold fingerprints are identical.
func (d *LoopDetector) Check(agent, action, target string) map[string]interface{} {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s:%s", agent, action, target)
	sig := h.Sum64()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, sig)
	if len(d.history) > loopWindow {
		d.history = d.history[1:]
	}

	if len(d.history) < loopThreshold {
		return nil
	}
	for _, s := range d.history[len(d.history)-loopThreshold:] {
		if s != sig {
			return nil
		}
	}

	return map[string]interface{}{
		"agent":  agent,
		"action": action,
		"target": target,
		"count":  loopThreshold,
	}
}
