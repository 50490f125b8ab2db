package session

import (
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// EventStatus is the lifecycle state of an event plan.
type EventStatus string

const (
	// EventPlanning is the initial state while details are being gathered.
	EventPlanning EventStatus = "planning"
	// EventConfirmed means schedule and location are locked in.
	EventConfirmed EventStatus = "confirmed"
	// EventCompleted is terminal.
	EventCompleted EventStatus = "completed"
	// EventCancelled is terminal.
	EventCancelled EventStatus = "cancelled"
)

// Expense is one spend recorded against an event's budget.
type Expense struct {
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	PaidBy      string    `json:"paid_by"`
	At          time.Time `json:"at"`
}

// EventPlan is a participant-scoped event being organized in a conversation.
// The participant set is fixed at creation.
type EventPlan struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Schedule     time.Time   `json:"schedule"`
	Location     string      `json:"location"`
	Participants []string    `json:"participants"`
	Budget       float64     `json:"budget"`
	Expenses     []Expense   `json:"expenses"`
	Status       EventStatus `json:"status"`
	Created      time.Time   `json:"created"`
	Updated      time.Time   `json:"updated"`
}

// SpentTotal sums all recorded expenses.
func (e *EventPlan) SpentTotal() float64 {
	var total float64
	for _, ex := range e.Expenses {
		total += ex.Amount
	}
	return roundCurrency(total)
}

// BudgetRemaining derives the unspent budget (may be negative).
func (e *EventPlan) BudgetRemaining() float64 {
	return roundCurrency(e.Budget - e.SpentTotal())
}

// terminal reports whether the plan can no longer be mutated.
func (e *EventPlan) terminal() bool {
	return e.Status == EventCompleted || e.Status == EventCancelled
}

// clone returns a deep copy safe for external use.
func (e *EventPlan) clone() *EventPlan {
	c := *e
	c.Participants = append([]string(nil), e.Participants...)
	c.Expenses = append([]Expense(nil), e.Expenses...)
	return &c
}

// EventStore holds event plans keyed by generated id. Owned exclusively by
// the utility handler.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]*EventPlan
}

// NewEventStore constructs an empty event store.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]*EventPlan)}
}

// Create stores a new plan in the planning state. The creator is always part
// of the participant set.
func (s *EventStore) Create(title, location string, schedule time.Time, participants []string, budget float64, creator string) (*EventPlan, error) {
	if title == "" {
		return nil, core.NewValidationError("title", "must not be empty")
	}
	if budget < 0 {
		return nil, core.NewValidationError("budget", "must not be negative")
	}
	members := normalizeParticipants(append([]string{creator}, participants...))
	if len(members) == 0 {
		return nil, core.NewValidationError("participants", "at least one participant required")
	}

	now := time.Now().UTC()
	plan := &EventPlan{
		ID:           core.NewID(),
		Title:        title,
		Schedule:     schedule,
		Location:     location,
		Participants: members,
		Budget:       budget,
		Status:       EventPlanning,
		Created:      now,
		Updated:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[plan.ID] = plan
	return plan.clone(), nil
}

// Get returns a clone of the plan or a NotFoundError.
func (s *EventStore) Get(id string) (*EventPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.events[id]
	if !ok {
		return nil, core.NewNotFoundError("event", id)
	}
	return plan.clone(), nil
}

// AddExpense records a spend against the plan. Only participants of a
// non-terminal plan may record expenses.
func (s *EventStore) AddExpense(id, actor, description string, amount float64) (*EventPlan, error) {
	if amount <= 0 {
		return nil, core.NewValidationError("amount", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.events[id]
	if !ok {
		return nil, core.NewNotFoundError("event", id)
	}
	if plan.terminal() {
		return nil, core.NewValidationError("status", "event is "+string(plan.Status))
	}
	if !hasParticipant(plan.Participants, actor) {
		return nil, core.NewValidationError("actor", "not a participant of this event")
	}

	plan.Expenses = append(plan.Expenses, Expense{
		Description: description,
		Amount:      roundCurrency(amount),
		PaidBy:      actor,
		At:          time.Now().UTC(),
	})
	plan.Updated = time.Now().UTC()
	return plan.clone(), nil
}

// Transition moves the plan to the target status. Valid transitions:
// planning→confirmed, planning/confirmed→completed or cancelled.
func (s *EventStore) Transition(id, actor string, target EventStatus) (*EventPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.events[id]
	if !ok {
		return nil, core.NewNotFoundError("event", id)
	}
	if !hasParticipant(plan.Participants, actor) {
		return nil, core.NewValidationError("actor", "not a participant of this event")
	}
	if plan.terminal() {
		return nil, core.NewValidationError("status", "event is "+string(plan.Status))
	}
	switch target {
	case EventConfirmed:
		if plan.Status != EventPlanning {
			return nil, core.NewValidationError("status", "only a planning event can be confirmed")
		}
	case EventCompleted, EventCancelled:
		// Reachable from any non-terminal state.
	default:
		return nil, core.NewValidationError("status", "invalid target status")
	}

	plan.Status = target
	plan.Updated = time.Now().UTC()
	return plan.clone(), nil
}

// PurgeTerminal removes completed and cancelled plans, returning the count.
func (s *EventStore) PurgeTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, plan := range s.events {
		if plan.terminal() {
			delete(s.events, id)
			n++
		}
	}
	return n
}
