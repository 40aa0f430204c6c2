// Package agent contains the agent implementations that form StudyMesh
// delegation graphs. It covers three concerns:
//
//  1. Identity and hierarchy plumbing (BaseAgent, ValidateTree, CloneSpec)
//  2. The model-backed conversational / tool-calling agent (ModelAgent)
//  3. Structured handoff between agents (transfer resolution over the graph)
//
// Agents nest via SetSubAgents and locate each other with FindAgent. A
// ModelAgent executes through the flow package, which streams events back to
// the runner; handoffs requested by tools are resolved against the root of
// the graph so siblings and cousins are valid targets, not just descendants.
package agent
