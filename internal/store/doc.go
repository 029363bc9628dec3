// Package store persists extracted frames in a local SQLite database.
//
// Three tables are kept per session, all keyed by frame id:
//
//   - frames: the full encoded payload plus insert time
//   - frame_metadata: a lightweight projection (name, timestamp, format,
//     score, selected) so listing and sorting never touch large blobs
//   - thumbnails: small JPEG renditions for preview surfaces
//
// Every full-frame write attempts a best-effort thumbnail write; a
// thumbnail failure never fails the parent write. Large batches defer
// thumbnail generation to a bounded background queue so the extraction
// loop stays responsive.
//
// The store is the single writer-of-record for frame bytes. A version
// bump or detected corruption triggers destructive recovery via
// Recreate; there is no cross-session migration guarantee.
package store
