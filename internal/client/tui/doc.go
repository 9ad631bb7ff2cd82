// Package tui implements the full-screen todo list: status tabs with live
// counts, debounced title search, inline add, toggling and deletion with a
// short undo window. All data flows through todos.Store, so every action
// is shown optimistically and reconciled with the server in the
// background.
package tui
