// Package eventbus implements the Event Bus: subscribe/publish
// over agent lifecycle transitions, with per-subscription filters, one-shot
// consumption, TTL expiry, and templated notification delivery back into an
// agent session via sendMessageToAgent.
package eventbus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"agentmux/internal/agentmodel"

	"github.com/google/uuid"
)

// Now is overridable by tests.
var Now = time.Now

// NewID is overridable by tests for deterministic subscription IDs.
var NewID = func() string { return uuid.NewString() }

// DefaultTTL is the default subscription lifetime when CreateSubscriptionInput
// doesn't set one.
const DefaultTTL = 30 * time.Minute

// Filter narrows which events a subscription matches. Empty fields match
// anything.
type Filter struct {
	SessionName string
	MemberID    string
	TeamID      string
}

func (f Filter) matches(event agentmodel.AgentEvent) bool {
	if f.SessionName != "" && f.SessionName != event.SessionName {
		return false
	}
	if f.MemberID != "" && f.MemberID != event.MemberID {
		return false
	}
	if f.TeamID != "" && f.TeamID != event.TeamID {
		return false
	}
	return true
}

// Subscription is the persisted record of one subscriber's interest.
type Subscription struct {
	ID                string
	EventTypes        []string
	Filter            Filter
	OneShot           bool
	SubscriberSession string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	MessageTemplate   string

	// inFlight marks a one-shot subscription claimed by a Publish in
	// progress, so a concurrent Publish matching the same event cannot
	// also dispatch it. Guarded by Bus.mu.
	inFlight bool
}

func (s *Subscription) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func (s *Subscription) matchesType(eventType string) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, t := range s.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// CreateSubscriptionInput is the input to CreateSubscription.
type CreateSubscriptionInput struct {
	EventTypes        []string
	Filter            Filter
	OneShot           *bool // nil selects the default (true)
	TTL               time.Duration // zero selects DefaultTTL; negative means never expires
	SubscriberSession string
	MessageTemplate   string
}

// Sender delivers a rendered notification to a subscriber session. The
// Registration Engine's SendMessageToAgent satisfies this.
type Sender interface {
	SendMessageToAgent(session, message string) error
}

// Bus owns the subscription store and dispatches matching events to Sender.
type Bus struct {
	sender Sender

	mu   sync.Mutex
	subs map[string]*Subscription
}

// New creates a Bus that delivers through sender.
func New(sender Sender) *Bus {
	return &Bus{sender: sender, subs: make(map[string]*Subscription)}
}

// CreateSubscription validates in and stores a new Subscription, returning
// its ID.
func (b *Bus) CreateSubscription(in CreateSubscriptionInput) (string, error) {
	if in.SubscriberSession == "" {
		return "", fmt.Errorf("eventbus: subscriberSession is required")
	}
	if len(in.EventTypes) == 0 {
		return "", fmt.Errorf("eventbus: at least one event type is required")
	}

	oneShot := true
	if in.OneShot != nil {
		oneShot = *in.OneShot
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	now := Now()
	sub := &Subscription{
		ID:                NewID(),
		EventTypes:        append([]string(nil), in.EventTypes...),
		Filter:            in.Filter,
		OneShot:           oneShot,
		SubscriberSession: in.SubscriberSession,
		CreatedAt:         now,
		MessageTemplate:   in.MessageTemplate,
	}
	if ttl > 0 {
		sub.ExpiresAt = now.Add(ttl)
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub.ID, nil
}

// Unsubscribe removes a subscription by ID, idempotently.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Publish matches event against stored subscriptions — after pruning
// expired and already-consumed one-shot entries — and enqueues a rendered
// delivery to each match. memberName is used to render the
// {memberName} template variable; pass "" if unknown. Delivery errors are
// dropped here, not returned. A one-shot subscription is deleted only after
// a successful send; a failed send leaves it stored for a later event.
func (b *Bus) Publish(event agentmodel.AgentEvent, memberName string) {
	now := Now()

	b.mu.Lock()
	var matched []*Subscription
	for id, sub := range b.subs {
		if sub.expired(now) {
			delete(b.subs, id)
			continue
		}
		if sub.inFlight {
			continue
		}
		if sub.matchesType(event.Type) && sub.Filter.matches(event) {
			if sub.OneShot {
				// Claim before releasing the lock: a concurrent Publish
				// matching the same one-shot must not also dispatch it.
				sub.inFlight = true
			}
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matched {
		message := renderTemplate(sub.MessageTemplate, event, memberName)
		err := b.sender.SendMessageToAgent(sub.SubscriberSession, message)
		if !sub.OneShot {
			continue
		}
		b.mu.Lock()
		if err == nil {
			delete(b.subs, sub.ID)
		} else {
			sub.inFlight = false
		}
		b.mu.Unlock()
	}
}

// PublishStatusChange builds an AgentEvent for a single status-field
// transition and publishes it. eventType follows the "agent:<newValue>"
// convention seen in this package's tests (e.g. "agent:active",
// "agent:idle") so a subscription's EventTypes filter can match on the
// state an agent entered rather than on which field changed.
func (b *Bus) PublishStatusChange(eventType, teamID, memberID, sessionName, memberName string, field agentmodel.ChangedField, previous, newValue string) {
	b.Publish(agentmodel.AgentEvent{
		ID:            NewID(),
		Type:          eventType,
		Timestamp:     Now(),
		TeamID:        teamID,
		MemberID:      memberID,
		SessionName:   sessionName,
		PreviousValue: previous,
		NewValue:      newValue,
		ChangedField:  field,
	}, memberName)
}

// renderTemplate substitutes the fixed template variable set:
// {memberName, sessionName, previousValue, newValue, changedField,
// eventType, timestamp}.
func renderTemplate(tmpl string, event agentmodel.AgentEvent, memberName string) string {
	r := strings.NewReplacer(
		"{memberName}", memberName,
		"{sessionName}", event.SessionName,
		"{previousValue}", event.PreviousValue,
		"{newValue}", event.NewValue,
		"{changedField}", event.ChangedField.String(),
		"{eventType}", event.Type,
		"{timestamp}", event.Timestamp.Format(time.RFC3339),
	)
	return r.Replace(tmpl)
}
