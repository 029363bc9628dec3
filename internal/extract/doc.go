// Package extract produces frames from a video source and writes them
// through the store in bounded batches.
//
// Two extractor implementations share one contract: a pipeline decoder
// that grabs pre-computed timestamps in batches with parallel encoding,
// and a slower seek-and-grab fallback that tolerates per-timestamp
// failures by skipping them. A pure strategy function decides which one
// runs; classified capability failures in the pipeline trigger a
// one-time fallback to seek-and-grab for the whole run.
package extract
