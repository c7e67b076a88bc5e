// Package storage persists subscribers, central-bank reference rates, and
// per-chat dashboard bindings in a single SQLite file.
package storage
