// Package chatmesh provides a high-level façade over the dispatch engine and
// the specialized message handlers. Most applications interact with this
// package by:
//  1. Creating a ChatMesh via New() (optionally overriding the language
//     model, chain actor and feed collaborators)
//  2. Optionally registering additional handlers
//  3. Feeding conversational messages through ProcessMessage
//
// All defaults are safe for local development and testing: the mock
// completer, mock chain actor and mock feeds require no credentials.
// Production deployments supply a real model completer and a structured
// logger.
package chatmesh

import (
	"context"
	"time"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/feed"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/model"
)

// Options configures the ChatMesh instance.
type Options struct {
	// Completer is the language model used by every handler's fallback.
	// Defaults to the mock completer.
	Completer model.Completer

	// Actor performs blockchain wallet operations. Defaults to the mock.
	Actor chain.Actor

	// Quoter supplies token prices. Defaults to the mock.
	Quoter feed.Quoter

	// ContentProvider supplies curated feed items. Defaults to the mock.
	ContentProvider feed.ContentProvider

	// Logger used across handlers and the engine. Defaults to no-op.
	Logger logging.Logger

	// Metrics receives dispatch instrumentation. Nil disables it.
	Metrics *metrics.Metrics

	// MaxConcurrentDispatches bounds in-flight dispatches.
	MaxConcurrentDispatches int64

	// ConversationBuffer is the per-conversation queue size.
	ConversationBuffer int

	// WorkerIdleTimeout is how long idle conversation workers linger.
	WorkerIdleTimeout time.Duration

	// HistoryLimit bounds the history handed to handlers.
	HistoryLimit int

	// PurgeInterval enables periodic purging of terminal sessions when
	// positive.
	PurgeInterval time.Duration
}

// ChatMesh bundles the master router, the built-in handlers and the engine.
type ChatMesh struct {
	master *agent.Master
	engine *engine.Engine

	utility *agent.UtilityHandler
	trading *agent.TradingHandler
	gaming  *agent.GamingHandler
	social  *agent.SocialHandler
	miniapp *agent.MiniAppHandler
}

// New constructs a ChatMesh with the five built-in handlers registered in
// their fixed priority order: utility, trading, gaming, social, miniapp.
func New(optFns ...func(o *Options)) (*ChatMesh, error) {
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
	if opts.Completer == nil {
		opts.Completer = model.NewMockCompleter()
	}
	if opts.Actor == nil {
		opts.Actor = chain.NewMockActor()
	}
	if opts.Quoter == nil {
		opts.Quoter = feed.NewMockQuoter()
	}
	if opts.ContentProvider == nil {
		opts.ContentProvider = feed.NewMockContentProvider()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	m := &ChatMesh{
		master:  agent.NewMaster(opts.Completer, opts.Logger),
		utility: agent.NewUtilityHandler(opts.Completer, opts.Actor, opts.Logger),
		trading: agent.NewTradingHandler(opts.Completer, opts.Actor, opts.Quoter, opts.Logger),
		gaming:  agent.NewGamingHandler(opts.Completer, opts.Logger),
		social:  agent.NewSocialHandler(opts.Completer, opts.ContentProvider, opts.Logger),
		miniapp: agent.NewMiniAppHandler(opts.Completer, opts.Logger),
	}
	if opts.Metrics != nil {
		m.master.SetFailureHook(opts.Metrics.IncFailure)
	}

	for _, h := range []core.Handler{m.utility, m.trading, m.gaming, m.social, m.miniapp} {
		if err := m.master.Register(h); err != nil {
			return nil, err
		}
	}

	m.engine = engine.New(m.master, func(o *engine.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.MaxConcurrentDispatches = opts.MaxConcurrentDispatches
		o.ConversationBuffer = opts.ConversationBuffer
		o.WorkerIdleTimeout = opts.WorkerIdleTimeout
		o.HistoryLimit = opts.HistoryLimit
		o.PurgeInterval = opts.PurgeInterval
		o.Purgers = []engine.Purger{
			m.utility.Events(), m.utility.Splits(),
			m.gaming.Games(), m.miniapp.Apps(),
		}
	})
	return m, nil
}

// RegisterHandler adds a custom handler after the built-ins; it is consulted
// last during selection.
func (m *ChatMesh) RegisterHandler(h core.Handler) error {
	return m.master.Register(h)
}

// ProcessMessage dispatches one conversational message.
func (m *ChatMesh) ProcessMessage(ctx context.Context, content, senderID, conversationID string, optFns ...func(o *engine.ProcessOptions)) (*core.AgentResponse, error) {
	return m.engine.ProcessMessage(ctx, content, senderID, conversationID, optFns...)
}

// Engine exposes the underlying dispatch engine, e.g. for the HTTP server.
func (m *ChatMesh) Engine() *engine.Engine { return m.engine }

// Health reports the engine's health snapshot.
func (m *ChatMesh) Health() engine.Health { return m.engine.Health() }

// Close stops the dispatch loop.
func (m *ChatMesh) Close() { m.engine.Close() }
