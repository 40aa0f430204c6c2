// Package model defines the reasoning-service abstraction consumed by flows
// and agents, plus a deterministic MockModel for tests. Vendor adapters live
// in the subpackages openai, anthropic and gemini.
package model
