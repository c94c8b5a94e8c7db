// Package export assembles per-language output documents from the
// translated chunks of a project and writes them to disk as text or
// HTML files.
package export
