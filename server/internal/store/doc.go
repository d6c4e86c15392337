// Package store owns the server's live status tree.
//
// Report applies leaf reports (derived targets are rejected with ErrNotLeaf),
// recomputes the tree and returns the Change set, which is also fanned out to
// subscribers (alerts, metrics). Reload swaps in a freshly built tree and
// carries leaf statuses over by name. Run resets leaves that stopped
// reporting to unknown after the staleness TTL.
//
// All methods are safe for concurrent use; the tree itself is only touched
// under the store's RWMutex.
package store
