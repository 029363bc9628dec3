// Package media wraps the external decode/probe collaborators: ffprobe
// metadata probing, raster encode/decode helpers, byte-level format
// sniffing, and an optional libvips fast path for thumbnail resizing.
package media
