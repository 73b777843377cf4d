// Package cmap provides a sharded concurrent map keyed by integer ids.
//
// Keys are spread over shards with a 64-bit integer finalizer, so lookups
// never format or allocate. Each shard has its own RWMutex.
//
// Usage:
//
//	m := cmap.New[domain.CallbackID, domain.Callback]()
//	if !m.SetIfAbsent(42, fn) {
//		// id already taken
//	}
//	fn, ok := m.Get(42)
package cmap
