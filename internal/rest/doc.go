// Package rest provides the request/response HTTP client that complements
// the streaming connection.
//
// Calls run through a circuit breaker so a down service fails fast, and
// idempotent requests are retried on transient failures. The base URL is
// configured directly or derived from the streaming URL.
package rest
