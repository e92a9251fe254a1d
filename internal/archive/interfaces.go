package archive

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves an HTML page. A non-200 response is reported as an error
// wrapping ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Renderer turns a web document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// PDFProcessor strips images and the given phrases from a PDF.
type PDFProcessor interface {
	Sanitize(ctx context.Context, pdf []byte, phrases []string) (Sanitized, error)
}

// BlobStore persists artifacts under slash-separated keys.
type BlobStore interface {
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// CaseCatalog records scraped case metadata outside the JSON files.
type CaseCatalog interface {
	UpsertCases(ctx context.Context, period Period, records []CaseRecord) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher fingerprints document bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
