// Package processor contains the core business logic for translating
// documents. It coordinates project persistence, the provider gateway,
// the translation orchestrator, quality assessment and export file
// generation. This package serves as the main coordinator between all
// other components.
package processor
