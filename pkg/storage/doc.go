// Package storage persists extracted posts and writes exported files.
//
// Two Store backends share the same merge rule: a fresh extraction replaces
// the stored fields of a post with the same id, but a pass that collected
// no comments keeps the comments already stored.
//
//   - SQLiteStore keeps posts and comments in SQLite (modernc.org/sqlite,
//     WAL journaling)
//   - JSONStore keeps one JSON array file, rewritten atomically
//
// The Manager writes exports (CSV, ZIP) into the output directory using a
// temporary file and a rename, and remembers which files already exist.
//
// Usage:
//
//	store, err := storage.Open(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	merged, err := store.Upsert(ctx, *post)
package storage
