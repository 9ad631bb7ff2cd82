// Package client is the data-access layer of the todokeeper client.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the todo REST API (see API).
//  2. HTTPClient, the JSON-over-HTTP implementation. It builds URLs from a
//     base address, drops empty query parameters, and turns every non-2xx
//     response into an *APIError.
//  3. HealthClient, which asks the server's gRPC health endpoint whether the
//     todo service is serving. The CLI uses it for its online indicator.
//
// # Error Handling
//
// *APIError carries the operation, the HTTP status and the server-provided
// detail. It matches the sentinels ErrNotFound (404), ErrValidation (400)
// and ErrUnavailable (5xx) with errors.Is. Transport failures also match
// ErrUnavailable, and context cancellation is preserved so callers can tell
// an aborted request from a failed one.
//
// All operations accept context.Context and honour cancellation. HTTPClient
// and HealthClient are safe for concurrent use.
package client
