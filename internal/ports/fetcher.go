package ports

import (
	"context"

	"flakekit/internal/types"
)

// FetcherPort obtains the source behind a concrete flake reference.
// Implementations must be idempotent: fetching the same concrete
// identity twice yields the same SourceInfo. Fetch is the only
// resolution step allowed to block on network or VCS I/O; callers
// impose timeouts through ctx.
type FetcherPort interface {
	Fetch(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error)
}

// EvaluatorPort extracts flake metadata from a fetched source.
type EvaluatorPort interface {
	Eval(ctx context.Context, src types.SourceInfo) (types.FlakeMetadata, error)
}
