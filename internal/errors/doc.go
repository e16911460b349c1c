// Package errors defines error types for the skein client.
//
// This package provides structured error types covering the failure surface of
// the streaming connection, correlated requests, and the HTTP collaborator.
// All error types support error unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
