package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockActor is an in-memory Actor for tests and examples. Balances are held
// per address; an optional delay simulates network latency for timeout tests
// and arbitrary failures can be injected per operation.
type MockActor struct {
	mu       sync.Mutex
	wallet   float64 // Sending wallet balance; transfers draw from here
	balances map[string]float64
	rates    map[string]float64 // "FROM/TO" -> exchange rate
	delay    time.Duration
	fail     map[string]error // op name -> injected failure
	txSeq    int
}

// NewMockActor constructs a MockActor with a comfortably funded wallet.
func NewMockActor() *MockActor {
	return &MockActor{
		wallet:   1_000_000,
		balances: make(map[string]float64),
		fail:     make(map[string]error),
	}
}

// SetWalletBalance sets the sending wallet balance transfers draw from.
func (m *MockActor) SetWalletBalance(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet = amount
}

// SetBalance seeds the balance for an address.
func (m *MockActor) SetBalance(address string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = amount
}

// SetDelay makes every operation block for d before returning, honoring
// context cancellation.
func (m *MockActor) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailWith injects err for the named operation ("transfer", "balance",
// "deploy_token"). A nil err clears the injection.
func (m *MockActor) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// wait blocks for the configured delay unless the context expires first.
func (m *MockActor) wait(ctx context.Context, op string) error {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return NewActionError(op, ErrNetwork, ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

// Transfer implements Actor. Destination addresses must be 0x-prefixed.
func (m *MockActor) Transfer(ctx context.Context, to string, amount float64, asset string) (TxRef, error) {
	if err := m.wait(ctx, "transfer"); err != nil {
		return "", err
	}
	if !strings.HasPrefix(to, "0x") {
		return "", NewActionError("transfer", ErrInvalidAddress, fmt.Errorf("address %q", to))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail["transfer"]; ok {
		return "", NewActionError("transfer", ErrNetwork, err)
	}
	if amount <= 0 {
		return "", NewActionError("transfer", ErrInvalidAddress, fmt.Errorf("non-positive amount %v", amount))
	}
	if m.wallet < amount {
		return "", NewActionError("transfer", ErrInsufficientFunds, nil)
	}
	m.wallet -= amount
	m.balances[to] += amount
	m.txSeq++
	return TxRef(fmt.Sprintf("0xmocktx%04d", m.txSeq)), nil
}

// Balance implements Actor.
func (m *MockActor) Balance(ctx context.Context, address string) (float64, error) {
	if err := m.wait(ctx, "balance"); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail["balance"]; ok {
		return 0, NewActionError("balance", ErrNetwork, err)
	}
	return m.balances[address], nil
}

// Swap implements Actor with a flat mock rate table: every asset trades 1:1
// unless SetRate configured otherwise.
func (m *MockActor) Swap(ctx context.Context, fromAsset, toAsset string, amount float64) (float64, TxRef, error) {
	if err := m.wait(ctx, "swap"); err != nil {
		return 0, "", err
	}
	if amount <= 0 {
		return 0, "", NewActionError("swap", ErrInvalidAddress, fmt.Errorf("non-positive amount %v", amount))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail["swap"]; ok {
		return 0, "", NewActionError("swap", ErrNetwork, err)
	}
	rate := 1.0
	if r, ok := m.rates[fromAsset+"/"+toAsset]; ok {
		rate = r
	}
	m.txSeq++
	return amount * rate, TxRef(fmt.Sprintf("0xmocktx%04d", m.txSeq)), nil
}

// SetRate configures the mock exchange rate for a from/to asset pair.
func (m *MockActor) SetRate(fromAsset, toAsset string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rates == nil {
		m.rates = make(map[string]float64)
	}
	m.rates[fromAsset+"/"+toAsset] = rate
}

// DeployToken implements Actor.
func (m *MockActor) DeployToken(ctx context.Context, name, symbol string, supply float64) (ContractRef, error) {
	if err := m.wait(ctx, "deploy_token"); err != nil {
		return "", err
	}
	if name == "" || symbol == "" || supply <= 0 {
		return "", NewActionError("deploy_token", ErrInvalidAddress, fmt.Errorf("invalid token parameters"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail["deploy_token"]; ok {
		return "", NewActionError("deploy_token", ErrNetwork, err)
	}
	m.txSeq++
	return ContractRef(fmt.Sprintf("0xmockcontract%04d", m.txSeq)), nil
}
