// Package core provides the foundational domain types, interfaces and
// execution contexts used by StudyMesh. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (per-conversation state bags with event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - A pluggable store for session state
//
// The package intentionally keeps implementation concerns (persistence,
// turn orchestration, concrete agents, connectors) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
