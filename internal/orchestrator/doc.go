// Package orchestrator drives multi-language, multi-chunk document
// translation. It owns the per-project run state machine: chunking the
// source text, iterating language-major over (chunk, language) units,
// skipping already-translated units so paused runs resume without
// repeating work, and reporting progress through caller-supplied
// callbacks.
package orchestrator
