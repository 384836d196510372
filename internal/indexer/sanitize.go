package indexer

import "context"

// SanitizeInput is what a Sanitizer receives: the workspace-relative path
// of the file under ingest and its decoded text content.
type SanitizeInput struct {
	Path    string
	Content string
}

// Sanitizer transforms or redacts a file's content before it is chunked
// and stored. Returning a nil string leaves the content unchanged;
// returning an error aborts ingestion of that file. The ingest
// coordinator accepts this as a plain function value rather than an
// interface, so callers can wire in redaction, normalization, or other
// pre-chunk passes without this package knowing about them.
type Sanitizer func(ctx context.Context, in SanitizeInput) (*string, error)

// NoopSanitizer returns content unchanged. It is the default when no
// sanitizer is configured.
func NoopSanitizer(_ context.Context, _ SanitizeInput) (*string, error) {
	return nil, nil
}
