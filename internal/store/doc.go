// Package store persists translation projects and their chunks. It is
// the single source of truth for pipeline state: every mutation made by
// the orchestrator goes through the ProjectStore and ChunkStore
// interfaces, with a SQLite implementation backing both.
package store
