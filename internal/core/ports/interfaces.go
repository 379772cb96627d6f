package ports

import (
	"context"
	"time"

	"github.com/skaldhq/skald/internal/core/domain"
)

// TextGenerator abstracts the generative text model backend.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator abstracts an image generation backend. Optional: the
// renderer falls back to placeholder references when none is configured.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// CaptionProvider fetches the raw transcript for a video URL.
// An empty string with a nil error means the provider had no captions.
type CaptionProvider interface {
	FetchCaption(ctx context.Context, videoURL string) (string, error)
}

// ObjectInfo describes one stored object returned by a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the narrow object-storage surface the pipeline needs:
// prefix listing with modification times plus simple put/get of small blobs.
// Put returns a resolvable URL for the stored object.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// CodeSandbox runs untrusted plotting code in an isolated interpreter.
// workDir is a host directory bind-mounted into the sandbox; the code is
// expected to deposit its artifact there. The combined interpreter output
// is returned even when the run fails.
type CodeSandbox interface {
	Run(ctx context.Context, code string, workDir string) (string, error)
}

// JobStore is the relational job record store. Calls are fire-and-forget
// from the pipeline's point of view: failures are logged, never fatal.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.Job) error
	GetJob(ctx context.Context, id domain.JobID) (domain.Job, error)
	ListJobs(ctx context.Context, userID string) ([]domain.Job, error)
	UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus, resultKey string) error
	CreateReport(ctx context.Context, id domain.JobID, userID, key string) error
}
