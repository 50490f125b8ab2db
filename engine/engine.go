package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
)

// ErrClosed is returned by ProcessMessage after Close.
var ErrClosed = errors.New("engine is closed")

// ErrConversationBusy is returned when a conversation's task buffer is full.
// The caller should retry; accepting the message would either block other
// conversations or break arrival-order processing.
var ErrConversationBusy = errors.New("conversation queue is full")

// Router dispatches one message to a handler and always produces a response.
type Router interface {
	Route(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) *core.AgentResponse
	Handlers() []core.Handler
}

// Purger removes terminal sessions from a handler-owned store.
type Purger interface {
	PurgeTerminal() int
}

// Options configures the engine.
type Options struct {
	// Logger for dispatch-loop events. Defaults to a no-op logger.
	Logger logging.Logger

	// Metrics receives dispatch instrumentation. Nil disables it.
	Metrics *metrics.Metrics

	// MaxConcurrentDispatches bounds in-flight dispatches across all
	// conversations.
	MaxConcurrentDispatches int64

	// ConversationBuffer is the per-conversation task queue size.
	ConversationBuffer int

	// WorkerIdleTimeout is how long an idle conversation worker lingers
	// before exiting.
	WorkerIdleTimeout time.Duration

	// HistoryLimit bounds the per-conversation history handed to handlers.
	HistoryLimit int

	// PurgeInterval enables the janitor when positive and purgers are set.
	PurgeInterval time.Duration

	// Purgers are the stores the janitor sweeps.
	Purgers []Purger
}

// Engine is the dispatch loop. Safe for concurrent use.
type Engine struct {
	router  Router
	logger  logging.Logger
	metrics *metrics.Metrics
	opts    Options
	sem     *semaphore.Weighted

	mu      sync.Mutex
	workers map[string]*worker

	histMu  sync.Mutex
	history map[string][]core.Message

	started   time.Time
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New constructs an engine around the router.
func New(router Router, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger:                  logging.NoOpLogger{},
		MaxConcurrentDispatches: 8,
		ConversationBuffer:      16,
		WorkerIdleTimeout:       5 * time.Minute,
		HistoryLimit:            20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := &Engine{
		router:  router,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxConcurrentDispatches),
		workers: make(map[string]*worker),
		history: make(map[string][]core.Message),
		started: time.Now().UTC(),
		done:    make(chan struct{}),
	}
	if opts.PurgeInterval > 0 && len(opts.Purgers) > 0 {
		e.wg.Add(1)
		go e.janitor()
	}
	return e
}

// ProcessOptions carries the optional per-message inputs.
type ProcessOptions struct {
	// Metadata is attached to the agent context, e.g. a wallet address.
	Metadata map[string]string

	// Timestamp overrides the message arrival time.
	Timestamp time.Time
}

type dispatchResult struct {
	resp *core.AgentResponse
	err  error
}

type task struct {
	ctx     context.Context
	msg     core.InboundMessage
	meta    map[string]string
	convID  string
	results chan dispatchResult
}

type worker struct {
	id    string
	tasks chan task
}

// ProcessMessage dispatches one conversational message and blocks until the
// response is ready or ctx expires. Messages of the same conversation are
// processed strictly in the order this method accepted them.
func (e *Engine) ProcessMessage(ctx context.Context, content, senderID, conversationID string, optFns ...func(o *ProcessOptions)) (*core.AgentResponse, error) {
	if content == "" {
		return nil, core.NewValidationError("content", "must not be empty")
	}
	if senderID == "" {
		return nil, core.NewValidationError("sender_id", "must not be empty")
	}
	if conversationID == "" {
		return nil, core.NewValidationError("conversation_id", "must not be empty")
	}

	po := ProcessOptions{Timestamp: time.Now().UTC()}
	for _, fn := range optFns {
		fn(&po)
	}

	t := task{
		ctx: ctx,
		msg: core.InboundMessage{
			Content:   content,
			SenderID:  senderID,
			Timestamp: po.Timestamp,
		},
		meta:    po.Metadata,
		convID:  conversationID,
		results: make(chan dispatchResult, 1),
	}

	if err := e.enqueue(conversationID, t); err != nil {
		return nil, err
	}

	select {
	case r := <-t.results:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue hands the task to the conversation's worker, starting one if
// needed. The map access and the channel send happen under one lock so a
// worker cannot be reaped between lookup and send.
func (e *Engine) enqueue(conversationID string, t task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Checked under the lock: Close also closes done under it, so a task
	// accepted here is guaranteed a worker that will answer it.
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	w, ok := e.workers[conversationID]
	if !ok {
		w = &worker{id: conversationID, tasks: make(chan task, e.opts.ConversationBuffer)}
		e.workers[conversationID] = w
		e.wg.Add(1)
		go e.run(w)
		e.metrics.SetActiveConversations(len(e.workers))
		e.logger.Debug("engine.worker_started", "conversation", conversationID)
	}

	select {
	case w.tasks <- t:
		return nil
	default:
		return ErrConversationBusy
	}
}

// run is the per-conversation worker loop. It exits when the engine closes
// or after the idle timeout with an empty queue.
func (e *Engine) run(w *worker) {
	defer e.wg.Done()
	idle := time.NewTimer(e.opts.WorkerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case t := <-w.tasks:
			e.dispatch(t)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(e.opts.WorkerIdleTimeout)
		case <-idle.C:
			e.mu.Lock()
			if len(w.tasks) == 0 {
				delete(e.workers, w.id)
				e.metrics.SetActiveConversations(len(e.workers))
				e.mu.Unlock()
				e.logger.Debug("engine.worker_stopped", "conversation", w.id)
				return
			}
			e.mu.Unlock()
			idle.Reset(e.opts.WorkerIdleTimeout)
		case <-e.done:
			e.mu.Lock()
			delete(e.workers, w.id)
			e.mu.Unlock()
			e.drain(w)
			return
		}
	}
}

// drain fails every task still queued at shutdown so no caller is left
// blocking on a worker that will never dispatch again.
func (e *Engine) drain(w *worker) {
	for {
		select {
		case t := <-w.tasks:
			t.results <- dispatchResult{err: ErrClosed}
		default:
			return
		}
	}
}

// dispatch runs one task under the global concurrency bound and records the
// exchange in the conversation history.
func (e *Engine) dispatch(t task) {
	if err := e.sem.Acquire(t.ctx, 1); err != nil {
		t.results <- dispatchResult{err: err}
		return
	}
	defer e.sem.Release(1)

	agentCtx := &core.AgentContext{
		UserID:         t.msg.SenderID,
		ConversationID: t.convID,
		History:        e.snapshotHistory(t.convID),
		Metadata:       t.meta,
	}

	start := time.Now()
	resp := e.router.Route(t.ctx, t.msg, agentCtx)
	e.metrics.ObserveDispatch(resp.Handler, time.Since(start))

	e.appendHistory(t.convID,
		core.Message{Sender: t.msg.SenderID, Content: t.msg.Content, Timestamp: t.msg.Timestamp},
		core.Message{Sender: resp.Handler, Content: resp.Text, Timestamp: time.Now().UTC()},
	)

	t.results <- dispatchResult{resp: resp}
}

// snapshotHistory returns a defensive copy of the conversation history.
func (e *Engine) snapshotHistory(conversationID string) []core.Message {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	return append([]core.Message(nil), e.history[conversationID]...)
}

// appendHistory records messages, trimming the oldest beyond the limit.
func (e *Engine) appendHistory(conversationID string, msgs ...core.Message) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	h := append(e.history[conversationID], msgs...)
	if n := len(h) - e.opts.HistoryLimit; n > 0 {
		h = h[n:]
	}
	e.history[conversationID] = h
}

// janitor periodically purges terminal sessions from the registered stores.
func (e *Engine) janitor() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, p := range e.opts.Purgers {
				total += p.PurgeTerminal()
			}
			if total > 0 {
				e.metrics.AddPurged(total)
				e.logger.Info("engine.janitor.purged", "sessions", total)
			}
		case <-e.done:
			return
		}
	}
}

// HandlerInfo is one registry entry in a health snapshot.
type HandlerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Health is a point-in-time snapshot of the dispatch loop.
type Health struct {
	Uptime              time.Duration `json:"uptime"`
	Handlers            []HandlerInfo `json:"handlers"`
	ActiveConversations int           `json:"active_conversations"`
}

// Health reports the registered handlers and live worker count.
func (e *Engine) Health() Health {
	e.mu.Lock()
	active := len(e.workers)
	e.mu.Unlock()

	handlers := e.router.Handlers()
	infos := make([]HandlerInfo, len(handlers))
	for i, h := range handlers {
		infos[i] = HandlerInfo{Name: h.Name(), Description: h.Description()}
	}
	return Health{
		Uptime:              time.Since(e.started),
		Handlers:            infos,
		ActiveConversations: active,
	}
}

// Close stops the workers and the janitor. In-flight dispatches may still
// complete; tasks still queued are failed with ErrClosed, as are subsequent
// ProcessMessage calls.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		close(e.done)
		e.mu.Unlock()
	})
	e.wg.Wait()
}
