package session

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// SplitMethod determines how a payment split's total is apportioned.
type SplitMethod string

const (
	// SplitEqual divides the total evenly across participants.
	SplitEqual SplitMethod = "equal"
	// SplitCustom uses explicit per-participant amounts.
	SplitCustom SplitMethod = "custom"
	// SplitPercentage uses per-participant percentages of the total.
	SplitPercentage SplitMethod = "percentage"
)

// SplitStatus is the settlement state of a payment split.
type SplitStatus string

const (
	// SplitPending means no participant has paid yet.
	SplitPending SplitStatus = "pending"
	// SplitPartial means some but not all participants have paid.
	SplitPartial SplitStatus = "partial"
	// SplitSettled is terminal: every participant has paid.
	SplitSettled SplitStatus = "settled"
)

// Share is one participant's owed amount and payment flag.
type Share struct {
	Participant string  `json:"participant"`
	Owed        float64 `json:"owed"`
	Paid        bool    `json:"paid"`
}

// PaymentSplit apportions a total amount across a fixed participant set.
//
// Rounding rule: owed amounts are rounded half-up to two decimal places and
// the final participant absorbs the rounding remainder, so the shares always
// sum exactly to the total.
type PaymentSplit struct {
	ID       string      `json:"id"`
	Total    float64     `json:"total"`
	Currency string      `json:"currency"`
	Method   SplitMethod `json:"method"`
	Shares   []Share     `json:"shares"`
	Status   SplitStatus `json:"status"`
	Created  time.Time   `json:"created"`
	Updated  time.Time   `json:"updated"`
}

// participants lists the share holders.
func (p *PaymentSplit) participants() []string {
	out := make([]string, len(p.Shares))
	for i, s := range p.Shares {
		out[i] = s.Participant
	}
	return out
}

// recomputeStatus derives the settlement status from the paid flags.
func (p *PaymentSplit) recomputeStatus() {
	paid := 0
	for _, s := range p.Shares {
		if s.Paid {
			paid++
		}
	}
	switch {
	case paid == len(p.Shares):
		p.Status = SplitSettled
	case paid > 0:
		p.Status = SplitPartial
	default:
		p.Status = SplitPending
	}
}

// clone returns a deep copy safe for external use.
func (p *PaymentSplit) clone() *PaymentSplit {
	c := *p
	c.Shares = append([]Share(nil), p.Shares...)
	return &c
}

// SplitStore holds payment splits keyed by generated id. Owned exclusively by
// the utility handler.
type SplitStore struct {
	mu     sync.RWMutex
	splits map[string]*PaymentSplit
}

// NewSplitStore constructs an empty split store.
func NewSplitStore() *SplitStore {
	return &SplitStore{splits: make(map[string]*PaymentSplit)}
}

// CreateEqual creates an equal split of total across participants.
func (s *SplitStore) CreateEqual(total float64, currency string, participants []string) (*PaymentSplit, error) {
	members, err := validateSplitInput(total, participants)
	if err != nil {
		return nil, err
	}

	per := roundCurrency(total / float64(len(members)))
	shares := make([]Share, len(members))
	for i, m := range members {
		shares[i] = Share{Participant: m, Owed: per}
	}
	// Last share absorbs the rounding remainder so owed amounts sum to total.
	shares[len(shares)-1].Owed = roundCurrency(total - per*float64(len(members)-1))

	return s.store(total, currency, SplitEqual, shares), nil
}

// CreateCustom creates a split with explicit per-participant amounts. The
// amounts must sum to the total within floating tolerance.
func (s *SplitStore) CreateCustom(total float64, currency string, amounts map[string]float64) (*PaymentSplit, error) {
	if total <= 0 {
		return nil, core.NewValidationError("total", "must be positive")
	}
	if len(amounts) == 0 {
		return nil, core.NewValidationError("amounts", "at least one participant required")
	}

	amounts = normalizeAmountKeys(amounts)
	var sum float64
	shares := make([]Share, 0, len(amounts))
	for _, m := range normalizeParticipants(keys(amounts)) {
		owed := roundCurrency(amounts[m])
		if owed <= 0 {
			return nil, core.NewValidationError("amounts", fmt.Sprintf("amount for %s must be positive", m))
		}
		shares = append(shares, Share{Participant: m, Owed: owed})
		sum += owed
	}
	if math.Abs(sum-total) > 0.01 {
		return nil, core.NewValidationError("amounts", fmt.Sprintf("amounts sum to %.2f, expected %.2f", sum, total))
	}

	return s.store(total, currency, SplitCustom, shares), nil
}

// CreatePercentage creates a split from per-participant percentages, which
// must sum to 100 within tolerance.
func (s *SplitStore) CreatePercentage(total float64, currency string, percentages map[string]float64) (*PaymentSplit, error) {
	if total <= 0 {
		return nil, core.NewValidationError("total", "must be positive")
	}
	if len(percentages) == 0 {
		return nil, core.NewValidationError("percentages", "at least one participant required")
	}

	percentages = normalizeAmountKeys(percentages)
	var pctSum float64
	for _, pct := range percentages {
		pctSum += pct
	}
	if math.Abs(pctSum-100) > 1e-6 {
		return nil, core.NewValidationError("percentages", fmt.Sprintf("percentages sum to %.4f, expected 100", pctSum))
	}

	members := normalizeParticipants(keys(percentages))
	shares := make([]Share, len(members))
	var allocated float64
	for i, m := range members {
		owed := roundCurrency(total * percentages[m] / 100)
		shares[i] = Share{Participant: m, Owed: owed}
		allocated += owed
	}
	shares[len(shares)-1].Owed = roundCurrency(shares[len(shares)-1].Owed + total - allocated)

	return s.store(total, currency, SplitPercentage, shares), nil
}

// store assigns an id and persists the split in the pending state.
func (s *SplitStore) store(total float64, currency string, method SplitMethod, shares []Share) *PaymentSplit {
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	split := &PaymentSplit{
		ID:       core.NewID(),
		Total:    roundCurrency(total),
		Currency: currency,
		Method:   method,
		Shares:   shares,
		Status:   SplitPending,
		Created:  now,
		Updated:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.splits[split.ID] = split
	return split.clone()
}

// Get returns a clone of the split or a NotFoundError.
func (s *SplitStore) Get(id string) (*PaymentSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	split, ok := s.splits[id]
	if !ok {
		return nil, core.NewNotFoundError("split", id)
	}
	return split.clone(), nil
}

// MarkPaid flips the paid flag for one participant after that participant's
// transfer succeeded, then rederives the settlement status. Partial failure
// of other transfers never settles the split: settled requires every flag.
func (s *SplitStore) MarkPaid(id, actor, participant string) (*PaymentSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[id]
	if !ok {
		return nil, core.NewNotFoundError("split", id)
	}
	if !hasParticipant(split.participants(), actor) {
		return nil, core.NewValidationError("actor", "not a participant of this split")
	}

	for i := range split.Shares {
		if split.Shares[i].Participant != participant {
			continue
		}
		if split.Shares[i].Paid {
			return nil, core.NewValidationError("participant", participant+" already paid")
		}
		split.Shares[i].Paid = true
		split.recomputeStatus()
		split.Updated = time.Now().UTC()
		return split.clone(), nil
	}
	return nil, core.NewValidationError("participant", participant+" is not part of this split")
}

// PurgeTerminal removes settled splits, returning the count.
func (s *SplitStore) PurgeTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, split := range s.splits {
		if split.Status == SplitSettled {
			delete(s.splits, id)
			n++
		}
	}
	return n
}

// validateSplitInput checks common create arguments and normalizes the
// participant list.
func validateSplitInput(total float64, participants []string) ([]string, error) {
	if total <= 0 {
		return nil, core.NewValidationError("total", "must be positive")
	}
	members := normalizeParticipants(participants)
	if len(members) == 0 {
		return nil, core.NewValidationError("participants", "at least one participant required")
	}
	return members, nil
}

// keys collects map keys in sorted order so share layout is deterministic.
func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalizeAmountKeys lowercases and trims map keys so lookups align with
// normalized participant names. Later duplicates accumulate.
func normalizeAmountKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out[k] += v
	}
	return out
}
