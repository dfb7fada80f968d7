// Package events provides the process-wide publish/subscribe channel used
// for deliberation observability, plus the embedded stuck-agent detector.
// The bus is an explicitly constructed value passed to collaborators; there
// is no ambient singleton.
package events

import (
	"sync"
	"time"

	"conclave/internal/logging"
)

// Type identifies an event stream.
type Type string

const (
	TypeDeliberationStart Type = "deliberation_start"
	TypeAgentVote         Type = "agent_vote"
	TypeConsensusReached  Type = "consensus_reached"
	TypeDeliberationEnd   Type = "deliberation_end"
	TypeError             Type = "error"
	TypeTokenStatus       Type = "token_status"
	TypeLoopDetected      Type = "loop_detected"
	TypeAgentAction       Type = "agent_action"
)

// Event is one published occurrence.
type Event struct {
	Type      Type
	Data      map[string]interface{}
	Timestamp time.Time
}

// Handler consumes events. Synchronous handlers run inline on the
// publisher's goroutine and must be fast; async handlers are scheduled and
// never block the publisher.
type Handler func(Event)

type subscriber struct {
	handler Handler
	async   bool
}

// Bus dispatches events to subscribers keyed by type.
type Bus struct {
	mu       sync.RWMutex
	subs     map[Type][]subscriber
	detector *LoopDetector
	wg       sync.WaitGroup
}

// NewBus creates a bus with an embedded loop detector.
func NewBus() *Bus {
	return &Bus{
		subs:     make(map[Type][]subscriber),
		detector: NewLoopDetector(),
	}
}

// Subscribe registers a synchronous handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], subscriber{handler: h})
}

// SubscribeAsync registers a handler that is scheduled onto its own
// goroutine per event. Publishers never wait for it.
func (b *Bus) SubscribeAsync(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], subscriber{handler: h, async: true})
}

// Publish delivers an event to all subscribers of its type. Agent-action
// events additionally feed the loop detector, which may publish a
// loop_detected event of its own.
func (b *Bus) Publish(t Type, data map[string]interface{}) {
	if t == TypeAgentAction {
		agent, _ := data["agent"].(string)
		action, _ := data["action"].(string)
		target, _ := data["target"].(string)
		if loop := b.detector.Check(agent, action, target); loop != nil {
			b.Publish(TypeLoopDetected, loop)
		}
	}

	b.mu.RLock()
	subs := b.subs[t]
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	ev := Event{Type: t, Data: data, Timestamp: time.Now()}
	for _, s := range subs {
		if s.async {
			b.wg.Add(1)
			go func(h Handler) {
				defer b.wg.Done()
				defer recoverHandler(t)
				h(ev)
			}(s.handler)
			continue
		}
		func() {
			defer recoverHandler(t)
			s.handler(ev)
		}()
	}
}

// Drain blocks until all in-flight async handlers finish. Intended for
// shutdown and tests.
func (b *Bus) Drain() {
	b.wg.Wait()
}

func recoverHandler(t Type) {
	if r := recover(); r != nil {
		logging.Events("subscriber panic on %s: %v", t, r)
	}
}
