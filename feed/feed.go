// Package feed defines the external-data collaborators for market quotes and
// curated content. The core never assumes particular values from these
// sources, only that calls are fallible and return typed results.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Quote is a point-in-time price for a token symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	PriceUSD  float64   `json:"price_usd"`
	Change24h float64   `json:"change_24h"` // Fractional change, e.g. -0.05
	FetchedAt time.Time `json:"fetched_at"`
}

// Quoter supplies token price quotes.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// ContentItem is one curated content entry. Relevance is kept within [0,1].
type ContentItem struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// ContentProvider supplies content items for a set of interest topics.
type ContentProvider interface {
	Fetch(ctx context.Context, interests []string, limit int) ([]ContentItem, error)
}

// MockQuoter returns canned quotes and is safe for concurrent use.
type MockQuoter struct {
	mu     sync.Mutex
	quotes map[string]float64
	err    error
}

// NewMockQuoter seeds a handful of familiar symbols.
func NewMockQuoter() *MockQuoter {
	return &MockQuoter{quotes: map[string]float64{
		"ETH":  3200.50,
		"BTC":  97500.00,
		"USDC": 1.00,
	}}
}

// SetQuote registers a canned price for symbol.
func (m *MockQuoter) SetQuote(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[strings.ToUpper(symbol)] = price
}

// SetError makes every lookup fail with err.
func (m *MockQuoter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Quote implements Quoter.
func (m *MockQuoter) Quote(_ context.Context, symbol string) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Quote{}, m.err
	}
	symbol = strings.ToUpper(symbol)
	price, ok := m.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no quote for symbol %q", symbol)
	}
	return Quote{Symbol: symbol, PriceUSD: price, FetchedAt: time.Now().UTC()}, nil
}

// MockContentProvider serves canned items filtered by interest topic.
type MockContentProvider struct {
	mu    sync.Mutex
	items []ContentItem
	err   error
}

// NewMockContentProvider seeds a small item set spanning common topics.
func NewMockContentProvider() *MockContentProvider {
	return &MockContentProvider{items: []ContentItem{
		{Title: "Layer-2 fees hit yearly low", URL: "https://example.com/l2-fees", Topic: "defi", Relevance: 0.9},
		{Title: "Onchain gaming weekly roundup", URL: "https://example.com/gaming", Topic: "gaming", Relevance: 0.8},
		{Title: "Stablecoin payments in group chats", URL: "https://example.com/payments", Topic: "payments", Relevance: 0.7},
		{Title: "New governance proposal passes", URL: "https://example.com/gov", Topic: "governance", Relevance: 0.5},
	}}
}

// AddItem registers an additional content item, clamping relevance to [0,1].
func (m *MockContentProvider) AddItem(item ContentItem) {
	if item.Relevance < 0 {
		item.Relevance = 0
	}
	if item.Relevance > 1 {
		item.Relevance = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

// SetError makes every fetch fail with err.
func (m *MockContentProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Fetch implements ContentProvider. With no interests all items qualify.
func (m *MockContentProvider) Fetch(_ context.Context, interests []string, limit int) ([]ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	wanted := make(map[string]bool, len(interests))
	for _, i := range interests {
		wanted[strings.ToLower(i)] = true
	}
	var out []ContentItem
	for _, item := range m.items {
		if len(wanted) > 0 && !wanted[item.Topic] {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
