// Package watcher reports batches of changed files under a directory so the
// CLI can re-run a search when the tree changes.
//
// Usage:
//
//	err := watcher.Watch(ctx, ".", watcher.Options{}, func(paths []string) {
//	    // re-run the search
//	})
package watcher
