// Package checkpoint saves and resumes batch progress.
//
// A checkpoint records which items of a named result list a batch already
// handled, so an interrupted batch skips them on the next run. Checkpoints
// are stored in platform-specific data directories:
//   - Linux: $XDG_DATA_HOME/xhsdl/checkpoints/ or ~/.local/share/xhsdl/checkpoints/
//   - macOS: ~/Library/Application Support/xhsdl/checkpoints/
//   - Windows: %APPDATA%/xhsdl/checkpoints/
//
// Files are written atomically through a temporary file and rename.
package checkpoint
