// Package session provides the built-in volatile SessionStore
// implementation. Sessions live for the duration of the process and are
// discarded with the store; there is no durable persistence.
package session
