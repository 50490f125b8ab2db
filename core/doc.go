// Package core provides the foundational domain types and interfaces used by
// chatmesh. It defines the core abstractions for:
//
//   - Handlers (named, specialized responders for conversational messages)
//   - Inbound messages and the per-dispatch AgentContext
//   - AgentResponse with typed side-effect Actions
//   - Tools (schema-validated operations exposed by a handler)
//   - The error taxonomy shared by all components
//
// The package intentionally keeps implementation concerns (concrete handlers,
// session stores, the dispatch engine) out of scope, exposing small interfaces
// to enable custom implementations and extensions.
package core
