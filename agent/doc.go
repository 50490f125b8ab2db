// Package agent implements the six message handlers: utility, trading,
// gaming, social, mini-app and the distinguished master.
//
// Every handler follows the same shape: a cheap keyword gate (ShouldHandle),
// a small set of regex/keyword fast paths inside Handle, and an opaque
// language-model fallback with the handler's tool set bound. The master
// additionally embodies the router: it holds the handler registry, selects a
// handler per message in registration order and performs the one-hop
// hand-off protocol.
package agent
