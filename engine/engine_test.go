package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRouter records the messages it sees and answers with a canned echo.
type stubRouter struct {
	mu       sync.Mutex
	seen     map[string][]string // conversation id -> contents in dispatch order
	delay    time.Duration
	handlers []core.Handler
}

func newStubRouter() *stubRouter {
	return &stubRouter{seen: make(map[string][]string)}
}

func (r *stubRouter) Route(_ context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) *core.AgentResponse {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.seen[agentCtx.ConversationID] = append(r.seen[agentCtx.ConversationID], msg.Content)
	r.mu.Unlock()
	return core.NewResponse("stub", "echo: "+msg.Content)
}

func (r *stubRouter) Handlers() []core.Handler { return r.handlers }

func (r *stubRouter) order(conversationID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen[conversationID]...)
}

func TestEngine_ProcessMessage(t *testing.T) {
	router := newStubRouter()
	e := New(router)
	defer e.Close()

	resp, err := e.ProcessMessage(context.Background(), "hello", "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Text)
}

func TestEngine_RejectsEmptyFields(t *testing.T) {
	e := New(newStubRouter())
	defer e.Close()

	var ve *core.ValidationError
	_, err := e.ProcessMessage(context.Background(), "", "alice", "c1")
	require.ErrorAs(t, err, &ve)
	_, err = e.ProcessMessage(context.Background(), "hi", "", "c1")
	require.ErrorAs(t, err, &ve)
	_, err = e.ProcessMessage(context.Background(), "hi", "alice", "")
	require.ErrorAs(t, err, &ve)
}

func TestEngine_ConversationOrderingIsStrict(t *testing.T) {
	router := newStubRouter()
	router.delay = 2 * time.Millisecond
	e := New(router, func(o *Options) {
		o.MaxConcurrentDispatches = 4
		o.ConversationBuffer = 64
	})
	defer e.Close()

	const n = 20
	var wg sync.WaitGroup
	// One goroutine per conversation keeps per-conversation submission
	// order deterministic while conversations interleave freely.
	for _, conv := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(conv string) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				_, err := e.ProcessMessage(context.Background(), fmt.Sprintf("msg-%03d", i), "alice", conv)
				assert.NoError(t, err)
			}
		}(conv)
	}
	wg.Wait()

	for _, conv := range []string{"c1", "c2"} {
		got := router.order(conv)
		require.Len(t, got, n)
		for i := 0; i < n; i++ {
			assert.Equal(t, fmt.Sprintf("msg-%03d", i), got[i])
		}
	}
}

func TestEngine_HistoryIsBoundedAndPassed(t *testing.T) {
	var lastHistory []core.Message
	router := &captureRouter{onRoute: func(agentCtx *core.AgentContext) {
		lastHistory = agentCtx.History
	}}
	e := New(router, func(o *Options) { o.HistoryLimit = 4 })
	defer e.Close()

	for i := 0; i < 5; i++ {
		_, err := e.ProcessMessage(context.Background(), fmt.Sprintf("m%d", i), "alice", "c1")
		require.NoError(t, err)
	}

	// Each exchange stores two messages; the limit keeps only the newest
	// four, so the fifth dispatch sees the m2 and m3 exchanges.
	require.Len(t, lastHistory, 4)
	assert.Equal(t, "m2", lastHistory[0].Content)
}

// captureRouter lets a test observe the agent context of each dispatch.
type captureRouter struct {
	onRoute func(agentCtx *core.AgentContext)
}

func (r *captureRouter) Route(_ context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) *core.AgentResponse {
	if r.onRoute != nil {
		r.onRoute(agentCtx)
	}
	return core.NewResponse("stub", "ok: "+msg.Content)
}

func (r *captureRouter) Handlers() []core.Handler { return nil }

func TestEngine_MetadataReachesHandlers(t *testing.T) {
	var gotWallet string
	router := &captureRouter{onRoute: func(agentCtx *core.AgentContext) {
		gotWallet, _ = agentCtx.Meta("wallet_address")
	}}
	e := New(router)
	defer e.Close()

	_, err := e.ProcessMessage(context.Background(), "pay up", "alice", "c1",
		func(o *ProcessOptions) { o.Metadata = map[string]string{"wallet_address": "0xabc"} })
	require.NoError(t, err)
	assert.Equal(t, "0xabc", gotWallet)
}

func TestEngine_ClosedEngineRejectsMessages(t *testing.T) {
	e := New(newStubRouter())
	e.Close()

	_, err := e.ProcessMessage(context.Background(), "hi", "alice", "c1")
	assert.ErrorIs(t, err, ErrClosed)
}

// gateRouter blocks every dispatch until released so tests can hold a worker
// busy with tasks queued behind it.
type gateRouter struct {
	entered chan struct{}
	release chan struct{}
}

func (r *gateRouter) Route(_ context.Context, msg core.InboundMessage, _ *core.AgentContext) *core.AgentResponse {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	<-r.release
	return core.NewResponse("stub", "ok: "+msg.Content)
}

func (r *gateRouter) Handlers() []core.Handler { return nil }

func TestEngine_CloseAnswersQueuedTasks(t *testing.T) {
	router := &gateRouter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := New(router, func(o *Options) { o.ConversationBuffer = 4 })

	go func() { _, _ = e.ProcessMessage(context.Background(), "m1", "alice", "c1") }()
	<-router.entered // m1 is in flight, the worker is busy

	// m2 sits in the worker's queue with a context that never expires.
	queued := make(chan error, 1)
	go func() {
		_, err := e.ProcessMessage(context.Background(), "m2", "alice", "c1")
		queued <- err
	}()
	time.Sleep(50 * time.Millisecond)

	go e.Close()
	close(router.release)

	// m2 must be answered: dispatched normally or failed with ErrClosed,
	// never abandoned.
	select {
	case err := <-queued:
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued message was never answered after Close")
	}
}

func TestEngine_Health(t *testing.T) {
	router := newStubRouter()
	e := New(router)
	defer e.Close()

	_, err := e.ProcessMessage(context.Background(), "hi", "alice", "c1")
	require.NoError(t, err)

	health := e.Health()
	assert.Equal(t, 1, health.ActiveConversations)
	assert.GreaterOrEqual(t, health.Uptime, time.Duration(0))
}

// countingPurger counts janitor sweeps.
type countingPurger struct {
	mu     sync.Mutex
	sweeps int
}

func (p *countingPurger) PurgeTerminal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps++
	return 1
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweeps
}

func TestEngine_JanitorSweeps(t *testing.T) {
	purger := &countingPurger{}
	e := New(newStubRouter(), func(o *Options) {
		o.PurgeInterval = 10 * time.Millisecond
		o.Purgers = []Purger{purger}
	})

	assert.Eventually(t, func() bool { return purger.count() >= 2 }, time.Second, 5*time.Millisecond)
	e.Close()
}
