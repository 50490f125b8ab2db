// Package session provides the per-handler session stores: event plans,
// payment splits, game sessions, mini-app sessions and user preferences.
//
// Every store is a volatile, mutex-guarded in-process map. Each store is
// owned exclusively by the handler that created it; cross-handler needs go
// through the router hand-off, never shared memory. Mutating operations are
// atomic with respect to their session: all validation happens before any
// field is touched, so a rejected operation leaves the entity unchanged.
// Reads return clones to prevent external mutation of internal state.
//
// Entities whose status is terminal (completed, cancelled, settled) are
// garbage-eligible; each store exposes PurgeTerminal and no operation assumes
// a session exists forever.
package session
