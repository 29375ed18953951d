package domain

import (
	"context"
	"fmt"
)

// JobRepository is the driven port for job persistence.
type JobRepository interface {
	Create(ctx context.Context, url, folder string) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	FindPending(ctx context.Context, limit int) ([]Job, error)
	Claim(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, out Outcome) error
	Fail(ctx context.Context, id int64, reason string) error
	Retry(ctx context.Context, id int64, reason string) error
	RecoverStale(ctx context.Context) (int64, error)
}

// URLProcessor is the driven port for listing processing.
type URLProcessor interface {
	Name() string
	TargetDir() string
	Match(url string) bool
	Process(ctx context.Context, job *Job) (Outcome, error)
}

// Fetcher retrieves the body of a URL. Implementations return a
// *StatusError when the server answers with a non-2xx status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports an unsuccessful HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}
