// Package quality scores translated chunks against their source text
// on four axes via a secondary provider call. Assessment is purely
// additive: any failure falls back to neutral scores and never blocks
// or fails the translation pipeline.
package quality
