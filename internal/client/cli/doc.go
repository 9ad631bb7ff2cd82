// Package cli provides the interactive todo command-line client.
//
// It wires configuration, the HTTP API client, the optimistic todo store
// and an interactive REPL. A background watcher pings the server's gRPC
// health endpoint and shows whether the server is reachable.
//
// Commands cover listing by status, title filtering of the loaded list,
// server-side search, tag and date range queries, creating, editing,
// completing and deleting todos, undoing a delete, counts and export.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
