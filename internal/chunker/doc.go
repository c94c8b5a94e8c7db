// Package chunker splits document text into bounded-size chunks while
// trying to keep sentences intact. Chunks are the unit of translation
// work scheduled by the orchestrator.
package chunker
