// Package provider abstracts the external LLM translation backends
// behind a single Gateway contract. It owns prompt construction, the
// per-provider requests-per-minute self-throttle, circuit breaking and
// the error taxonomy the orchestrator keys its retry behavior on.
package provider
