// Package csync provides small generic concurrency-safe containers.
//
// Map guards a plain Go map with a RWMutex and adds Compute for
// read-modify-write updates that must not interleave with other writers:
//
//	surfaces := csync.NewMap[string, *Surface]()
//	surfaces.Set("merged", s)
//	surfaces.Compute("merged", func(cur *Surface, ok bool) (*Surface, bool) {
//		return resized(cur), true
//	})
package csync
